package secretstore

import "encoding/json"

func encodeKV(data map[string]string) []byte {
	if data == nil {
		return nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	return raw
}

func decodeKV(raw []byte) map[string]string {
	var out map[string]string
	_ = json.Unmarshal(raw, &out)
	return out
}
