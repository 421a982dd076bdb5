package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// dateFormat is used for drink window dates.
const dateFormat = "2006-01-02"

// ScanRequest is one scanned bottle. Barcode may be a JSON string or number.
type ScanRequest struct {
	Barcode any      `json:"barcode"`
	Price   *float64 `json:"price,omitempty"`
	Slot    *string  `json:"slot,omitempty"`
}

// ScanResponse identifies the rows a scan resolved to.
type ScanResponse struct {
	WineID           int64 `json:"wineId"`
	BottleID         int64 `json:"bottleId"`
	EnrichmentQueued bool  `json:"enrichmentQueued"`
}

// Wine describes a wine in a transport-friendly format.
type Wine struct {
	ID          int64           `json:"id"`
	UPC         *string         `json:"upc"`
	Producer    *string         `json:"producer"`
	Label       *string         `json:"label"`
	Vintage     *int            `json:"vintage"`
	Region      *string         `json:"region"`
	Country     *string         `json:"country"`
	DrinkFrom   *string         `json:"drinkFrom"`
	DrinkTo     *string         `json:"drinkTo"`
	CriticData  json.RawMessage `json:"criticData,omitempty"`
	Placeholder bool            `json:"placeholder"`
	CreatedAt   string          `json:"createdAt,omitempty"`
	UpdatedAt   string          `json:"updatedAt,omitempty"`
}

// WineSummary is a list entry: a wine plus its bottle count.
type WineSummary struct {
	Wine
	BottleCount int `json:"bottleCount"`
}

// Bottle describes one physical bottle.
type Bottle struct {
	ID            int64    `json:"id"`
	WineID        int64    `json:"wineId"`
	PurchasePrice *float64 `json:"purchasePrice"`
	Slot          *string  `json:"slot"`
	CreatedAt     string   `json:"createdAt,omitempty"`
}

// WineDetail is a wine together with all of its bottles.
type WineDetail struct {
	Wine    Wine     `json:"wine"`
	Bottles []Bottle `json:"bottles"`
}

// WineQuery narrows ListWines.
type WineQuery struct {
	Query            string
	PlaceholdersOnly bool
	Limit            int
	Offset           int
}

// WinePatchRequest is a manual wine edit. Absent fields are left untouched;
// fields named in Clear are set to null.
type WinePatchRequest struct {
	UPC        *string         `json:"upc,omitempty"`
	Producer   *string         `json:"producer,omitempty"`
	Label      *string         `json:"label,omitempty"`
	Vintage    *int            `json:"vintage,omitempty"`
	Region     *string         `json:"region,omitempty"`
	Country    *string         `json:"country,omitempty"`
	DrinkFrom  *string         `json:"drinkFrom,omitempty"`
	DrinkTo    *string         `json:"drinkTo,omitempty"`
	CriticData json.RawMessage `json:"criticData,omitempty"`
	Clear      []string        `json:"clear,omitempty"`
}

// WineUpdate reports the outcome of an enrichment or label apply.
type WineUpdate struct {
	Wine    Wine `json:"wine"`
	Changed bool `json:"changed"`
}

// DeleteWineResponse reports a cascading delete.
type DeleteWineResponse struct {
	WineID         int64 `json:"wineId"`
	BottlesRemoved int   `json:"bottlesRemoved"`
}

// LabelTask describes a label-reading task.
type LabelTask struct {
	ID        int64           `json:"id"`
	Status    string          `json:"status"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt string          `json:"createdAt,omitempty"`
	UpdatedAt string          `json:"updatedAt,omitempty"`
}

// ApplyLabelRequest names the wine a label reading should be merged into.
type ApplyLabelRequest struct {
	WineID int64 `json:"wineId"`
}

// CellarStats summarizes cellar contents.
type CellarStats struct {
	Wines        int            `json:"wines"`
	Placeholders int            `json:"placeholders"`
	Bottles      int            `json:"bottles"`
	LabelTasks   map[string]int `json:"labelTasks"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool        `json:"running"`
	PID          int         `json:"pid"`
	DatabasePath string      `json:"databasePath"`
	LockFilePath string      `json:"lockFilePath"`
	QueuedJobs   int         `json:"queuedJobs"`
	Cellar       CellarStats `json:"cellar"`
	Providers    []Provider  `json:"providers"`
}

// Provider reports whether an external provider has credentials.
type Provider struct {
	Name       string `json:"name"`
	Configured bool   `json:"configured"`
}

// WineListResponse wraps a collection of wines.
type WineListResponse struct {
	Wines []WineSummary `json:"wines"`
}

// LabelTaskListResponse wraps a collection of label tasks.
type LabelTaskListResponse struct {
	Tasks []LabelTask `json:"tasks"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
