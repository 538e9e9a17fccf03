package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Bodies lists the nine classical planets of a Vedic chart, in traditional order.
var Bodies = []string{"Sun", "Moon", "Mars", "Mercury", "Jupiter", "Venus", "Saturn", "Rahu", "Ketu"}

// User represents an authenticated user of the system.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// BirthDetails holds the user-supplied birth data plus the resolved coordinates.
// Immutable once the place has been resolved.
type BirthDetails struct {
	Date      string  `json:"date"` // YYYY-MM-DD
	Time      string  `json:"time"` // HH:MM, 24-hour, local to Place
	Place     string  `json:"place"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone"`   // IANA name, e.g. Asia/Kolkata
	UTCOffset float64 `json:"utc_offset"` // hours east of UTC at birth time
}

// BirthTimeUTC converts the local birth date/time to UTC using the resolved offset.
func (b *BirthDetails) BirthTimeUTC() (time.Time, error) {
	local, err := time.Parse("2006-01-02 15:04", b.Date+" "+b.Time)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse birth date/time: %w", err)
	}
	return local.Add(-time.Duration(b.UTCOffset * float64(time.Hour))), nil
}

// PlanetPosition is one body's sidereal placement in a chart.
type PlanetPosition struct {
	Longitude float64 `json:"longitude"` // sidereal ecliptic longitude, degrees [0,360)
	House     int     `json:"house"`     // 1..12
}

// Horoscope is the computed chart: sidereal positions and house placements for
// all nine bodies plus the ascendant. Derived deterministically from
// BirthDetails and never mutated afterwards.
type Horoscope struct {
	Ascendant   float64                   `json:"ascendant"` // sidereal degrees [0,360)
	HouseSystem string                    `json:"house_system"`
	Positions   map[string]PlanetPosition `json:"positions"`
}

// PlanetHouse is a (planet, house) pair used to filter rule retrieval.
type PlanetHouse struct {
	Planet string `json:"planet"`
	House  int    `json:"house"`
}

// Pairs returns the chart's planet-house combinations in traditional body order.
func (h *Horoscope) Pairs() []PlanetHouse {
	out := make([]PlanetHouse, 0, len(h.Positions))
	for _, body := range Bodies {
		if p, ok := h.Positions[body]; ok {
			out = append(out, PlanetHouse{Planet: body, House: p.House})
		}
	}
	return out
}

// Summary renders the chart as plain text for prompts and logs.
func (h *Horoscope) Summary() string {
	var sb strings.Builder
	names := make([]string, 0, len(h.Positions))
	for name := range h.Positions {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&sb, "- %s in House %d\n", name, h.Positions[name].House)
	}
	return sb.String()
}

// Document represents an uploaded or corpus-directory source book.
type Document struct {
	ID          string    `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"user_id"`
	FileName    string    `db:"file_name" json:"file_name"`
	StorageURL  string    `db:"storage_url" json:"storage_url"` // S3 URL or file:// path
	SourceType  string    `db:"source_type" json:"source_type"` // "upload" or "corpus"
	ContentType string    `db:"content_type" json:"content_type"`
	Status      string    `db:"status" json:"status"` // uploaded | processing | ready | failed
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// RuleChunk is one embedded passage of astrological text in the vector store.
// The ID is deterministic (documentID_position) so re-ingesting an unchanged
// document overwrites rather than duplicates.
type RuleChunk struct {
	ID         string    `db:"id" json:"id"`
	DocumentID string    `db:"document_id" json:"document_id"`
	Position   int       `db:"position" json:"position"`
	Planet     string    `db:"planet" json:"planet,omitempty"` // empty when the passage is not planet-house scoped
	House      int       `db:"house" json:"house,omitempty"`   // 0 when unknown
	Heading    string    `db:"heading" json:"heading,omitempty"`
	Text       string    `db:"text" json:"text"`
	Embedding  []float32 `db:"embedding" json:"-"`
	TokenCount int       `db:"token_count" json:"token_count"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// ChunkID builds the deterministic rule chunk identifier.
func ChunkID(documentID string, position int) string {
	return fmt.Sprintf("%s_%d", documentID, position)
}

// RetrievedRule is a rule chunk plus its relevance score for the current query.
// Lives only for the duration of one turn.
type RetrievedRule struct {
	Chunk RuleChunk `json:"chunk"`
	Score float64   `json:"score"`
}

// ChatSession owns one consultation: birth details, the computed chart and the
// ordered conversation history. Lifetime is session creation to termination.
type ChatSession struct {
	ID        string       `db:"id" json:"id"`
	UserID    string       `db:"user_id" json:"user_id"`
	Birth     BirthDetails `json:"birth"`
	Chart     *Horoscope   `json:"chart"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
}

// ChatMessage is one conversation turn, user or assistant.
type ChatMessage struct {
	ID        string    `db:"id" json:"id"`
	SessionID string    `db:"session_id" json:"session_id"`
	Role      string    `db:"role" json:"role"` // "user" or "assistant"
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
