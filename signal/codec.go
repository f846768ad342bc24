package signal

import (
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
)

// envelope is the JSON shape exchanged with the signaling transport.
//
// The envelope is deliberately flat and permissive: optional fields are
// omitted on the wire, and each message kind reads only the fields it needs.
// Decoding narrows the envelope into a typed variant exactly once.
type envelope struct {
	Type      string         `json:"type"`
	UserID    string         `json:"userId"`
	ClientID  string         `json:"clientId,omitempty"`
	SessionID string         `json:"sessionId"`
	SDP       string         `json:"sdp,omitempty"`
	Props     *envelopeProps `json:"props,omitempty"`
	Version   string         `json:"version,omitempty"`
	Response  bool           `json:"resp,omitempty"`
}

type envelopeProps struct {
	AudioSend  bool `json:"audiosend"`
	VideoSend  bool `json:"videosend"`
	ScreenSend bool `json:"screensend"`
}

// Decode parses a signaling envelope into its typed message variant.
//
// SETUP and PROP_SYNC envelopes that carry an SDP payload but no explicit
// props get their media flags derived from the SDP media sections. Unknown
// message types return ErrUnknownType so callers can drop unsupported traffic
// without aborting the session.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode signaling envelope: %w", err)
	}
	if env.UserID == "" {
		return nil, ErrMissingUserID
	}

	hdr := Header{
		UserID:    env.UserID,
		ClientID:  env.ClientID,
		SessionID: env.SessionID,
	}

	logrus.WithFields(logrus.Fields{
		"function":   "Decode",
		"type":       env.Type,
		"user_id":    env.UserID,
		"session_id": env.SessionID,
		"response":   env.Response,
	}).Debug("Decoding signaling envelope")

	switch Type(env.Type) {
	case TypeSetup:
		props, err := env.mediaProps()
		if err != nil {
			return nil, err
		}
		return &Setup{Header: hdr, SDP: env.SDP, Props: props, Version: env.Version, Response: env.Response}, nil
	case TypeHangup:
		return &Hangup{Header: hdr, Response: env.Response}, nil
	case TypeCancel:
		return &Cancel{Header: hdr}, nil
	case TypeReject:
		return &Reject{Header: hdr}, nil
	case TypeGroupStart:
		return &GroupStart{Header: hdr}, nil
	case TypeGroupLeave:
		return &GroupLeave{Header: hdr}, nil
	case TypePropSync:
		props, err := env.mediaProps()
		if err != nil {
			return nil, err
		}
		return &PropSync{Header: hdr, SDP: env.SDP, Props: props, Response: env.Response}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

// mediaProps resolves the media flags for a props-bearing envelope.
// Explicit props win; an SDP payload is consulted only in their absence.
func (env *envelope) mediaProps() (Props, error) {
	if env.Props != nil {
		return Props{
			AudioSend:  env.Props.AudioSend,
			VideoSend:  env.Props.VideoSend,
			ScreenSend: env.Props.ScreenSend,
		}, nil
	}
	if env.SDP != "" {
		return MediaFlags(env.SDP)
	}
	return Props{}, nil
}

// Encode serializes a message variant back into its wire envelope.
func Encode(msg Message) ([]byte, error) {
	hdr := msg.Hdr()
	env := envelope{
		Type:      string(msg.Kind()),
		UserID:    hdr.UserID,
		ClientID:  hdr.ClientID,
		SessionID: hdr.SessionID,
	}

	switch m := msg.(type) {
	case *Setup:
		env.SDP = m.SDP
		env.Props = &envelopeProps{
			AudioSend:  m.Props.AudioSend,
			VideoSend:  m.Props.VideoSend,
			ScreenSend: m.Props.ScreenSend,
		}
		env.Version = m.Version
		env.Response = m.Response
	case *Hangup:
		env.Response = m.Response
	case *PropSync:
		env.SDP = m.SDP
		env.Props = &envelopeProps{
			AudioSend:  m.Props.AudioSend,
			VideoSend:  m.Props.VideoSend,
			ScreenSend: m.Props.ScreenSend,
		}
		env.Response = m.Response
	}

	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to encode signaling envelope: %w", err)
	}
	return data, nil
}
