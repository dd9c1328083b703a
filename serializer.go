package jobline

import "encoding/json"

// Serializer converts job payloads to and from the text blob stored in
// Job.Data. Implementations must round-trip: Deserialize(Serialize(v))
// should produce a value equivalent to v for any supported v.
type Serializer interface {
	Serialize(v interface{}) (string, error)
	Deserialize(data string, v interface{}) error
}

// jsonSerializer is the default Serializer. It marshals payloads as
// canonical JSON via encoding/json, which already serializes map keys in
// sorted order.
type jsonSerializer struct{}

func (jsonSerializer) Serialize(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (jsonSerializer) Deserialize(data string, v interface{}) error {
	return json.Unmarshal([]byte(data), v)
}

// emptyPayload is serialized once by the maintenance loop whenever a
// scheduled job fires, so that the materialised Job carries the
// serializer's canonical "empty object" form.
var emptyPayload = map[string]interface{}{}
