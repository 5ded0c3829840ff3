// internal/hub/nats.go
package hub

import (
	"encoding/json"
	"fmt"

	"github.com/erilali/duet/internal/logger"
	"github.com/erilali/duet/internal/session"
	"github.com/nats-io/nats.go"
)

// NATSSink publishes room activity to core NATS subjects:
//
//	<prefix>.occupancy
//	<prefix>.chat
//	<prefix>.signal.<kind>
//
// Nothing is stored; subscribers only see activity while they are connected.
type NATSSink struct {
	conn   *nats.Conn
	prefix string
	logger *logger.Logger
}

func NewNATSSink(nc *nats.Conn, prefix string, logger *logger.Logger) *NATSSink {
	return &NATSSink{conn: nc, prefix: prefix, logger: logger}
}

// Subject returns the subject an activity is published on.
func (s *NATSSink) Subject(activity session.Activity) string {
	if activity.Type == session.ActivityRelay {
		return fmt.Sprintf("%s.signal.%s", s.prefix, activity.Kind)
	}
	return fmt.Sprintf("%s.%s", s.prefix, activity.Type)
}

func (s *NATSSink) Publish(activity session.Activity) {
	if s.conn == nil {
		return
	}
	data, err := json.Marshal(activity)
	if err != nil {
		s.logger.Errorf("Failed to marshal %s activity: %v", activity.Type, err)
		return
	}
	if err := s.conn.Publish(s.Subject(activity), data); err != nil {
		s.logger.Errorf("Failed to publish %s activity to NATS: %v", activity.Type, err)
	}
}

// Connected reports whether the NATS connection is up.
func (s *NATSSink) Connected() bool {
	return s.conn != nil && s.conn.Status() == nats.CONNECTED
}
