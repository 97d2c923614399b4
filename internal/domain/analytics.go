package domain

// DailyStat holds aggregated delivery counters for one day, notification
// type and channel
type DailyStat struct {
	Day       string           `bson:"day" json:"day"`
	Type      NotificationType `bson:"type" json:"type"`
	Channel   Channel          `bson:"channel" json:"channel"`
	Sent      int64            `bson:"sent" json:"sent"`
	Delivered int64            `bson:"delivered" json:"delivered"`
	Failed    int64            `bson:"failed" json:"failed"`
	Retried   int64            `bson:"retried" json:"retried"`
	Read      int64            `bson:"read" json:"read"`
}

// AnalyticsReport summarizes delivery performance over a date range
type AnalyticsReport struct {
	From           string      `json:"from"`
	To             string      `json:"to"`
	TotalSent      int64       `json:"total_sent"`
	TotalDelivered int64       `json:"total_delivered"`
	TotalFailed    int64       `json:"total_failed"`
	TotalRead      int64       `json:"total_read"`
	DeliveryRate   float64     `json:"delivery_rate"`
	ReadRate       float64     `json:"read_rate"`
	Days           []DailyStat `json:"days"`
}
