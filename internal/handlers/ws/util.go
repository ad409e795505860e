package ws

import "encoding/json"

func Deserialize(jsonBytes []byte) (Message, error) {
	var wrapper SerializedMessage
	if err := json.Unmarshal(jsonBytes, &wrapper); err != nil {
		return nil, err
	}

	return DeserializeSerializedMessage(&wrapper)
}

func DeserializeSerializedMessage(wrapper *SerializedMessage) (Message, error) {
	msg, err := CreateMessage(wrapper.Type, typeRegistry)
	if err != nil {
		return nil, err
	}

	// ping and pong usually arrive without a payload
	if len(wrapper.Payload) == 0 || string(wrapper.Payload) == "null" {
		return msg, nil
	}
	if err := json.Unmarshal(wrapper.Payload, msg); err != nil {
		return nil, err
	}

	return msg, nil
}
