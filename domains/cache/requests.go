package cache

type InvalidateRequest struct {
	Key  string `json:"key" query:"key"`
	Type string `json:"type" query:"type"`
}
