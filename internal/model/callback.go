package model

// CallbackPayload is the completion notice sent by the generation service.
// Providers differ in where they put the id and the result url.
type CallbackPayload struct {
	ID   string       `json:"id"`
	Data CallbackData `json:"data"`
}

type CallbackData struct {
	TaskID   string       `json:"taskId"`
	VideoURL string       `json:"videoUrl"`
	Info     CallbackInfo `json:"info"`
}

type CallbackInfo struct {
	ResultURLs []string `json:"resultUrls"`
}

// TaskID returns the nested task id, falling back to the top-level id.
func (p *CallbackPayload) TaskID() string {
	if p.Data.TaskID != "" {
		return p.Data.TaskID
	}
	return p.ID
}

// ResultURL returns the first result url, falling back to data.videoUrl.
func (p *CallbackPayload) ResultURL() string {
	for _, u := range p.Data.Info.ResultURLs {
		if u != "" {
			return u
		}
	}
	return p.Data.VideoURL
}

// CallbackAck is the body returned to the generation service.
type CallbackAck struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}
