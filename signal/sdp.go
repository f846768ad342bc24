package signal

import (
	"fmt"

	"github.com/pion/sdp/v3"
	"github.com/sirupsen/logrus"
)

// MediaFlags derives media send properties from an SDP payload.
//
// A media section counts as sending unless its direction attribute says
// otherwise (recvonly or inactive). A video section carrying a content
// attribute of "slides" or "screen" is treated as screen share rather than
// camera video.
func MediaFlags(raw string) (Props, error) {
	var desc sdp.SessionDescription
	if err := desc.Unmarshal([]byte(raw)); err != nil {
		return Props{}, fmt.Errorf("%w: %v", ErrMalformedSDP, err)
	}

	var props Props
	for _, media := range desc.MediaDescriptions {
		if !sectionSends(media) {
			continue
		}
		switch media.MediaName.Media {
		case "audio":
			props.AudioSend = true
		case "video":
			if isScreenShare(media) {
				props.ScreenSend = true
			} else {
				props.VideoSend = true
			}
		}
	}

	logrus.WithFields(logrus.Fields{
		"function":    "MediaFlags",
		"audio_send":  props.AudioSend,
		"video_send":  props.VideoSend,
		"screen_send": props.ScreenSend,
		"sections":    len(desc.MediaDescriptions),
	}).Debug("Derived media flags from SDP payload")

	return props, nil
}

// sectionSends reports whether the remote party transmits on this section.
func sectionSends(media *sdp.MediaDescription) bool {
	for _, attr := range media.Attributes {
		switch attr.Key {
		case "recvonly", "inactive":
			return false
		case "sendonly", "sendrecv":
			return true
		}
	}
	// No direction attribute defaults to sendrecv per RFC 4566.
	return true
}

// isScreenShare reports whether a video section is a screen share.
func isScreenShare(media *sdp.MediaDescription) bool {
	content, ok := media.Attribute("content")
	if !ok {
		return false
	}
	return content == "slides" || content == "screen"
}
