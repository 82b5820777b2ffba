package notifications

import "encoding/json"

// Event names on the wire. Clients send setup and the three post events;
// the hub emits getOnlineUsers and relays the post events.
const (
	EventSetup          = "setup"
	EventGetOnlineUsers = "getOnlineUsers"
	EventNewPost        = "newPost"
	EventUpdatePost     = "updatePost"
	EventDeletePost     = "deletePost"
)

// Envelope is the framing for every hub message, in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type setupData struct {
	UserID uint `json:"user_id"`
}

// postProbe pulls just the identifier out of a post payload so the hub can
// reject events that name no post without caring about the rest of the shape.
type postProbe struct {
	ID *json.Number `json:"id"`
}

type deletePostData struct {
	PostID *json.Number `json:"post_id"`
}

func hasID(n *json.Number) bool {
	return n != nil && n.String() != "" && n.String() != "0"
}
