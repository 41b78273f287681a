package dto

// ReportPayload is the composed notification handed to the mail sender.
type ReportPayload struct {
	Subject    string `json:"subject"`
	Body       string `json:"body"`
	HasIssues  bool   `json:"hasIssues"`
	IssueCount int    `json:"issueCount"`
	CleanCount int    `json:"cleanCount"`
	NoReports  bool   `json:"noReports"`
}
