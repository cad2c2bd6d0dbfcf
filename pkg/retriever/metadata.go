package retriever

import "encoding/json"

// decodeRecordMetadata best-effort decodes a decrypted metadata plaintext
// (the JSON the Scribe pipeline serialized at insert time) into a map.
// Malformed plaintext yields an empty, non-nil map rather than an error —
// one bad record should not sink the whole recall.
func decodeRecordMetadata(plaintext string) map[string]interface{} {
	var out map[string]interface{}
	if err := json.Unmarshal([]byte(plaintext), &out); err != nil || out == nil {
		return map[string]interface{}{}
	}
	return out
}
