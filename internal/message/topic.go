package message

import (
	"strings"
	"unicode/utf8"
)

const (
	topicSeparator      = "/"
	singleLevelWildcard = "+"
	multiLevelWildcard  = "#"

	// maxTopicLength is the MQTT limit for a UTF-8 encoded string.
	maxTopicLength = 65535
)

// ValidateTopicName checks a topic used for PUBLISH: non-empty, valid UTF-8,
// no NUL and no wildcard characters.
func ValidateTopicName(topic string) error {
	if topic == "" || len(topic) > maxTopicLength || !utf8.ValidString(topic) {
		return ErrInvalidTopicName
	}
	if strings.ContainsAny(topic, "+#\u0000") {
		return ErrInvalidTopicName
	}
	return nil
}

// ValidateTopicFilter checks a topic filter used for SUBSCRIBE.
func ValidateTopicFilter(filter string) error {
	if filter == "" || len(filter) > maxTopicLength || !utf8.ValidString(filter) {
		return ErrInvalidTopicFilter
	}
	if strings.Contains(filter, "\u0000") {
		return ErrInvalidTopicFilter
	}

	levels := strings.Split(filter, topicSeparator)
	for i, level := range levels {
		if strings.Contains(level, singleLevelWildcard) && level != singleLevelWildcard {
			return ErrInvalidTopicFilter
		}
		if strings.Contains(level, multiLevelWildcard) {
			if level != multiLevelWildcard || i != len(levels)-1 {
				return ErrInvalidTopicFilter
			}
		}
	}
	return nil
}

// SplitTopic returns the path segments of a topic. Empty segments are kept,
// so "a//b" has three levels and "/a" starts with an empty level.
func SplitTopic(topic string) []string {
	return strings.Split(topic, topicSeparator)
}

// JoinTopic is the inverse of SplitTopic.
func JoinTopic(segments []string) string {
	return strings.Join(segments, topicSeparator)
}
