// internal/autofix/models.go
package autofix

import "github.com/xkilldash9x/migrator/api/schemas"

// FixTask is one file together with the incidents located in it.
type FixTask struct {
	// URI identifies the file as the analyzer reported it.
	URI string `json:"uri"`
	// Path is the workspace-relative path used in prompts and aggregates.
	Path      string             `json:"path"`
	Content   string             `json:"content"`
	Incidents []schemas.Incident `json:"incidents"`
	// CacheKey, when set, addresses the response cache for this fix.
	CacheKey []string `json:"-"`
}

// FixResult is the parsed outcome of a single fix. An empty UpdatedFile means
// the model proposed no content for the file.
type FixResult struct {
	URI            string `json:"uri"`
	Path           string `json:"path"`
	UpdatedFile    string `json:"updated_file"`
	Reasoning      string `json:"reasoning"`
	AdditionalInfo string `json:"additional_info"`
	UsedHintIDs    []int  `json:"used_hint_ids"`
	// Failed is set when the model produced no usable response.
	Failed bool `json:"failed,omitempty"`
}

// FixResponse holds the three labeled sections of a fix response.
type FixResponse struct {
	Reasoning      string
	UpdatedFile    string
	AdditionalInfo string
}
