package gateway

import (
	"staybook/internal/domain/notification"
	"staybook/internal/domain/property"
	"staybook/internal/feed"
	"staybook/internal/pkg/toast"
)

// Inbound command types.
const (
	CmdAuth                 = "auth"
	CmdLogout               = "logout"
	CmdNotificationsFetch   = "notifications.fetch"
	CmdNotificationsRead    = "notifications.read"
	CmdNotificationsReadAll = "notifications.read_all"
	CmdNotificationsFilter  = "notifications.filter"
	CmdToastAction          = "toast.action"
	CmdSearchApply          = "search.apply"
	CmdSearchClear          = "search.clear"
	CmdSearchSort           = "search.sort"
	CmdSearchMore           = "search.more"
	CmdPropertyLike         = "property.like"
	CmdPropertyView         = "property.view"
	CmdPing                 = "ping"
)

// Outbound frame types.
const (
	FrameToast              = "toast"
	FrameNavigate           = "navigate"
	FrameNotificationsState = "notifications.state"
	FrameFeedState          = "feed.state"
	FramePong               = "pong"
	FrameError              = "error"
)

type ClientFrame struct {
	Type           string                  `json:"type"`
	Token          string                  `json:"token,omitempty"`
	More           bool                    `json:"more,omitempty"`
	NotificationID int64                   `json:"notification_id,omitempty"`
	Action         string                  `json:"action,omitempty"`
	Filter         notification.Filter     `json:"filter,omitempty"`
	Filters        *property.SearchFilters `json:"filters,omitempty"`
	Sort           property.SortKey        `json:"sort,omitempty"`
	PropertyID     int64                   `json:"property_id,omitempty"`
}

type ServerFrame struct {
	Type          string              `json:"type"`
	Toast         *toast.Toast        `json:"toast,omitempty"`
	Route         string              `json:"route,omitempty"`
	Notifications *notification.State `json:"notifications,omitempty"`
	Feed          *feed.State         `json:"feed,omitempty"`
	Command       string              `json:"command,omitempty"`
	ErrorCode     string              `json:"code,omitempty"`
	ErrorMessage  string              `json:"message,omitempty"`
}

func NewToastFrame(t toast.Toast) *ServerFrame {
	return &ServerFrame{Type: FrameToast, Toast: &t}
}

func NewNavigateFrame(route string) *ServerFrame {
	return &ServerFrame{Type: FrameNavigate, Route: route}
}

func NewNotificationsStateFrame(state notification.State) *ServerFrame {
	return &ServerFrame{Type: FrameNotificationsState, Notifications: &state}
}

func NewFeedStateFrame(state feed.State) *ServerFrame {
	return &ServerFrame{Type: FrameFeedState, Feed: &state}
}

func NewPongFrame() *ServerFrame {
	return &ServerFrame{Type: FramePong}
}

// NewErrorFrame reports a failed command. command is empty for frames that
// could not be parsed.
func NewErrorFrame(command, code, message string) *ServerFrame {
	return &ServerFrame{
		Type:         FrameError,
		Command:      command,
		ErrorCode:    code,
		ErrorMessage: message,
	}
}
