package handlers

// QuotaRequest identifies the subject whose quota is read or reset.
type QuotaRequest struct {
	Subject string `doc:"The rate-limited subject" example:"user_123" path:"subject"`
}

// QuotaResponse reports a subject's remaining budget without consuming it.
type QuotaResponse struct {
	Body struct {
		Subject       string `doc:"The rate-limited subject"               example:"user_123"      json:"subject"`
		Remaining     int64  `doc:"Whole tokens left in the bucket"        example:"42"            json:"remaining"`
		ResetAtMillis int64  `doc:"When the bucket fully refills (epoch ms)" example:"1700000000000" json:"resetAtMillis"`
	}
}

// ListKeysRequest filters the active-key listing.
type ListKeysRequest struct {
	Pattern string `doc:"Key glob pattern" example:"rate_limit:*" query:"pattern" required:"false"`
}

// ListKeysResponse enumerates bucket keys currently live in the store.
type ListKeysResponse struct {
	Body struct {
		Keys  []string `doc:"Matching bucket keys" json:"keys"`
		Count int      `doc:"Number of keys"       json:"count"`
	}
}
