package model

// Settings holds board-wide display settings.
type Settings struct {
	BackgroundTheme string   `json:"backgroundTheme"`
	GridSize        GridSize `json:"gridSize"`
}

// GridSize is the layout grid used by the board's grid view.
type GridSize struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

// Themes lists the accepted background themes.
var Themes = []string{
	"bg-gradient-1",
	"bg-gradient-2",
	"bg-gradient-3",
	"bg-gradient-4",
	"bg-gradient-5",
	"bg-pattern-1",
	"bg-pattern-2",
}

// DefaultSettings returns the settings used when none are stored.
func DefaultSettings() Settings {
	return Settings{
		BackgroundTheme: "bg-gradient-1",
		GridSize:        GridSize{Rows: 6, Cols: 8},
	}
}

// ValidTheme reports whether t is one of Themes.
func ValidTheme(t string) bool {
	for _, theme := range Themes {
		if theme == t {
			return true
		}
	}
	return false
}

// BoardData is the full listing returned to clients.
type BoardData struct {
	Signatures        []Item   `json:"signatures"`
	PendingSignatures []Item   `json:"pendingSignatures"`
	PendingMemories   []Item   `json:"pendingMemories"`
	Settings          Settings `json:"settings"`
}
