package dto

type ParseManifestRequest struct {
	Text string `json:"text"`
}

// StopInput is a parsed or manually entered stop before it has an identity.
type StopInput struct {
	StopIndex          int     `json:"stop_index,omitempty"`
	Address            string  `json:"address"`
	City               *string `json:"city,omitempty"`
	PackageCount       *int    `json:"package_count,omitempty"`
	DeliveryWindow     *string `json:"delivery_window,omitempty"`
	Kind               string  `json:"kind,omitempty"`
	SuspectedDuplicate *int    `json:"suspected_duplicate_of,omitempty"`
}

type ParseWarning struct {
	Line   int    `json:"line"`
	Header string `json:"header,omitempty"`
	Reason string `json:"reason"`
}

type ParseManifestResponse struct {
	Stops   []StopInput    `json:"stops"`
	Dropped []ParseWarning `json:"dropped"`
}
