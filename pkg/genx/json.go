package genx

import (
	"crypto/rand"
	"encoding/json"
	"encoding/hex"

	"github.com/kaptinlin/jsonrepair"
)

// UnmarshalJSON unmarshals JSON data into v, attempting to repair malformed
// JSON. Models occasionally emit trailing commas, single quotes or truncated
// objects in tool arguments; if the initial unmarshal fails with a syntax
// error the data is repaired with jsonrepair and decoded again.
func UnmarshalJSON(data []byte, v any) error {
	err := json.Unmarshal(data, v)
	if err == nil {
		return nil
	}
	if _, ok := err.(*json.SyntaxError); ok {
		fixed, err := jsonrepair.JSONRepair(string(data))
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(fixed), v)
	}
	return err
}

// hexString generates a random 16-character hexadecimal string.
func hexString() string {
	var b [8]byte
	rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
