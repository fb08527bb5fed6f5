package dto

import "time"

// CreateRouteRequest carries exactly one stop source: manifest text, CSV
// text or a manual stop list.
type CreateRouteRequest struct {
	Name         string      `json:"name"`
	ManifestText string      `json:"manifest_text,omitempty"`
	CSV          string      `json:"csv,omitempty"`
	Stops        []StopInput `json:"stops,omitempty"`
}

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type StopResponse struct {
	ID                 string       `json:"id"`
	OriginalPosition   int          `json:"original_position"`
	OptimizedPosition  *int         `json:"optimized_position"`
	Address            string       `json:"address"`
	City               *string      `json:"city"`
	PackageCount       *int         `json:"package_count"`
	DeliveryWindow     *string      `json:"delivery_window"`
	Kind               string       `json:"kind"`
	Coordinates        *Coordinates `json:"coordinates"`
	Completed          bool         `json:"completed"`
	SuspectedDuplicate *int         `json:"suspected_duplicate_of,omitempty"`
}

type RouteResponse struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	OwnerID   string         `json:"owner_id,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	Stops     []StopResponse `json:"stops"`
	Dropped   []ParseWarning `json:"dropped,omitempty"`
}

type RunResponse struct {
	ID              string    `json:"id"`
	Algorithm       string    `json:"algorithm"`
	KeyMode         string    `json:"key_mode"`
	DistanceMeters  int       `json:"distance_meters"`
	DurationSeconds int       `json:"duration_seconds"`
	CreatedAt       time.Time `json:"created_at"`
}

type ListRunsResponse struct {
	Runs []RunResponse `json:"runs"`
}

type GeocodeFailure struct {
	StopID  string `json:"stop_id"`
	Address string `json:"address"`
	Reason  string `json:"reason"`
}

type GeocodeResponse struct {
	Attempted    int              `json:"attempted"`
	Updated      int              `json:"updated"`
	FailureCount int              `json:"failure_count"`
	Failures     []GeocodeFailure `json:"failures"`
	KeyMode      string           `json:"key_mode"`
}

type OptimizeResponse struct {
	RunID           string                 `json:"run_id"`
	OrderedStopIDs  []string               `json:"ordered_stop_ids"`
	Coordinates     map[string]Coordinates `json:"coordinates"`
	Geocoded        int                    `json:"geocoded"`
	Algorithm       string                 `json:"algorithm"`
	KeyMode         string                 `json:"key_mode"`
	DistanceMeters  int                    `json:"distance_meters"`
	DurationSeconds int                    `json:"duration_seconds"`
}

type ProviderKeyRequest struct {
	APIKey string `json:"api_key"`
}
