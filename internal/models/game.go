package models

import "time"

type GameSession struct {
	ID         int64
	Name       string
	Tag        string
	BossHealth int
	StartTime  time.Time
	MemberIDs  []int64
}

func (g GameSession) HasMember(userID int64) bool {
	for _, id := range g.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}

type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

var Difficulties = []Difficulty{DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced}

const (
	TagCore      = "core"
	TagLowerBody = "lower_body"
	TagUpperBody = "upper_body"
	TagBalance   = "balance"
	TagCardio    = "cardio"
)

type Exercise struct {
	Name       string     `yaml:"name"`
	Difficulty Difficulty `yaml:"difficulty"`
	Tags       []string   `yaml:"tags"`
}

func (e Exercise) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// GameView is the read model returned to members of a session.
type GameView struct {
	ID          int64                   `json:"id"`
	Name        string                  `json:"name"`
	BossHealth  int                     `json:"bossHealth"`
	PartyHealth int                     `json:"partyHealth"`
	Users       []string                `json:"users"`
	Tag         string                  `json:"tag"`
	Exercises   map[Difficulty][]string `json:"-"`
}
