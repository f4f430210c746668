package directory

import "facility-booking-backend/internal/store"

// ApiResponse models the top-level structure of the facility directory's response.
type ApiResponse struct {
	Code int `json:"code"`
	Data struct {
		Page     int                   `json:"page"`
		PageSize int                   `json:"pageSize"`
		Total    int                   `json:"total"`
		Items    []store.DirectoryItem `json:"items"`
	} `json:"data"`
}
