package models

import "fmt"

// Verse is one ayah as read from the local snapshot, together with the
// translations joined onto it. Source records are immutable.
type Verse struct {
	ID            int
	SurahID       int
	AyahNumber    int
	SurahName     string
	TextUthmani   string
	TextSimple    string
	JuzNumber     int
	PageNumber    int
	TranslationEN string
	TranslationID string
}

// Label returns the surah:ayah position label used in progress output and
// failure records, e.g. "2:255".
func (v Verse) Label() string {
	return fmt.Sprintf("%d:%d", v.SurahID, v.AyahNumber)
}

// UpsertRecord is the wire shape of one verse row sent to the remote store.
// Summary columns are intentionally absent; the generator fills them later.
type UpsertRecord struct {
	ID          int    `json:"id"`
	SurahID     int    `json:"surah_id"`
	AyahNumber  int    `json:"ayah_number"`
	TextUthmani string `json:"text_uthmani"`
	TextSimple  string `json:"text_simple"`
	JuzNumber   int    `json:"juz_number"`
	PageNumber  int    `json:"page_number"`
}

// NewUpsertRecord maps a source verse onto the remote table schema.
func NewUpsertRecord(v Verse) UpsertRecord {
	return UpsertRecord{
		ID:          v.ID,
		SurahID:     v.SurahID,
		AyahNumber:  v.AyahNumber,
		TextUthmani: v.TextUthmani,
		TextSimple:  v.TextSimple,
		JuzNumber:   v.JuzNumber,
		PageNumber:  v.PageNumber,
	}
}

// SummaryUpdate is the partial-field PATCH body written by the generator.
type SummaryUpdate struct {
	SummaryEN string `json:"context_summary_en"`
	SummaryID string `json:"context_summary_id"`
}
