package history

import "encoding/json"

func contextKeyCount(raw string) int {
	if raw == "" {
		return 0
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return 0
	}
	return len(m)
}
