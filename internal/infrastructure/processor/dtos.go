package processor

// ErrorResponse is the processor's error envelope.
type ErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type chargeSearchResponse struct {
	Data []chargeResult `json:"data"`
}

type chargeResult struct {
	ID             string `json:"id"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Status         string `json:"status"`
	FailureCode    string `json:"failure_code"`
	FailureMessage string `json:"failure_message"`
	Created        int64  `json:"created"`
}
