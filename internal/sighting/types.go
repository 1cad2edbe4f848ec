package sighting

import "time"

// Geolocation is the point where a sighting was observed.
type Geolocation struct {
	Latitude  float64 `gorm:"column:latitude" json:"latitude"`
	Longitude float64 `gorm:"column:longitude" json:"longitude"`
}

// Sighting is a user-submitted wildlife observation.
type Sighting struct {
	ID                 string      `gorm:"primaryKey;type:varchar(26)" json:"id"`
	Nickname           string      `gorm:"type:varchar(64);index;not null" json:"nickname" binding:"required"`
	Photo              string      `gorm:"type:text" json:"photo"`
	Description        string      `gorm:"type:text" json:"description"`
	Geolocation        Geolocation `gorm:"embedded" json:"geolocation"`
	SeenAt             time.Time   `json:"datetime"`
	Identification     string      `gorm:"type:varchar(255)" json:"identification"`
	ScientificName     string      `gorm:"type:varchar(255)" json:"scientificName"`
	DBPediaURL         string      `gorm:"column:dbpedia_url;type:varchar(512)" json:"DBPediaURL"`
	DBPediaDescription string      `gorm:"column:dbpedia_description;type:text" json:"DBPediaDescription"`
	CreatedAt          time.Time   `json:"createdAt"`
	UpdatedAt          time.Time   `json:"updatedAt"`
}

func (Sighting) TableName() string { return "sightings" }

// Identified reports whether a name has been attached to the sighting.
func (s Sighting) Identified() bool {
	return s.Identification != ""
}

// Message is a chat message attached to a sighting. Messages are never
// mutated after creation.
type Message struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	SightID   string    `gorm:"type:varchar(26);index;not null" json:"sight"`
	Sender    string    `gorm:"type:varchar(64);not null" json:"sender"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

func (Message) TableName() string { return "chat_messages" }

// Identification is the body of an identification update. Sender must match
// the sighting's nickname.
type Identification struct {
	Sender             string `json:"sender" binding:"required"`
	Identification     string `json:"identification"`
	ScientificName     string `json:"scientificName"`
	DBPediaURL         string `json:"DBPediaURL"`
	DBPediaDescription string `json:"DBPediaDescription"`
}

// Candidate is one result of an identification lookup.
type Candidate struct {
	ScientificName string `json:"scientificName"`
	Description    string `json:"description"`
	URI            string `json:"uri"`
}
