package mcp

// ExtractRequest holds the arguments of the extract_equations tool.
type ExtractRequest struct {
	Entry    string `json:"entry"`
	Root     string `json:"root,omitempty"`
	Strategy string `json:"strategy,omitempty"`
	Target   string `json:"target,omitempty"`
	Offline  bool   `json:"offline,omitempty"`
	Limit    int    `json:"limit,omitempty"` // 0 means all items
}

// ExtractedItem is one item of an ExtractResponse.
type ExtractedItem struct {
	Index int    `json:"index"` // 1-based
	File  string `json:"file"`
	Text  string `json:"text"`
	Exact bool   `json:"exact"`
}

// ExtractResponse is the JSON result of the extract_equations tool.
type ExtractResponse struct {
	Items     []ExtractedItem `json:"items"`
	Files     []string        `json:"files"`
	Total     int             `json:"total"`
	Truncated bool            `json:"truncated,omitempty"`
}

// DepsEdge is one link of a DepsResponse.
type DepsEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
	Role string `json:"role"` // "import" or "include"
}

// DepsResponse is the JSON result of the typst_deps tool.
type DepsResponse struct {
	Files  []string   `json:"files"`
	Edges  []DepsEdge `json:"edges"`
	Cycles [][]string `json:"cycles"`
}
