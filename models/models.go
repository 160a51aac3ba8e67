package models

import "encoding/json"

type User struct {
	Id      string `json:"id"`
	Name    string `json:"name"`
	Created int64  `json:"created"`
}

type Room struct {
	Id      string `json:"id"`
	Slug    string `json:"slug"`
	AdminId string `json:"adminId"`
	Created int64  `json:"createdAt"`
}

// Chat is one persisted chat log entry. Shape payloads from drawing clients
// travel as Message text and are replayed by clients on load.
type Chat struct {
	Id      string `json:"id"`
	RoomId  string `json:"roomId"`
	UserId  string `json:"userId"`
	Message string `json:"message"`
	Created int64  `json:"created"`
}

// RoomID is a room id that clients may send as a JSON string or number.
type RoomID string

func (r *RoomID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*r = RoomID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*r = RoomID(n.String())
	return nil
}
