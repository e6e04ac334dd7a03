package models

// Setting is a single key/value row of business configuration.
type Setting struct {
	Key   string `gorm:"primaryKey;size:64" json:"key"`
	Value string `gorm:"type:text" json:"value"`
}

// Sequence is the persisted counter behind document numbering.
type Sequence struct {
	Name  string `gorm:"primaryKey;size:16" json:"name"`
	Year  int    `gorm:"primaryKey;autoIncrement:false" json:"year"`
	Value int64  `gorm:"not null" json:"value"`
}
