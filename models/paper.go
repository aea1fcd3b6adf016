package models

import "time"

// Paper repräsentiert eine hochgeladene Klausur samt Metadaten.
//
// Das Feld "Department" ist der historisch gewachsene Spaltenname; nach
// außen heißt es "specialization". Die Übersetzung passiert ausschließlich
// an der API-Grenze, intern existiert nur dieser eine Name.
//
// Ein Paper ohne AdminApproved-Flag wartet auf Moderation. Eine Ablehnung
// wird nicht als Zustand gespeichert, sondern durch Löschen von Datensatz
// und Objekt realisiert.
type Paper struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Title      string `json:"title" gorm:"not null"`
	Subject    string `json:"subject" gorm:"not null;index"`
	Semester   int    `json:"semester" gorm:"not null;index"`
	Year       int    `json:"year" gorm:"not null;index"`
	Department string `json:"department" gorm:"not null;index"`
	Program    string `json:"program" gorm:"not null"`

	// URL ist der öffentliche Abruf-Link, FileKey der Objekt-Key im Bucket.
	// Solange der Datensatz existiert, muss das Objekt unter FileKey leben.
	URL     string `json:"url" gorm:"not null"`
	FileKey string `json:"file_key" gorm:"not null"`

	UploadedBy    string `json:"uploaded_by" gorm:"not null;index"`
	AdminApproved bool   `json:"admin_approved" gorm:"not null;default:false;index"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (Paper) TableName() string {
	return "papers"
}
