package calendarclient

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/jakechorley/promoter-slots/internal/config"
	"github.com/jakechorley/promoter-slots/pkg/apperrors"
	"github.com/jakechorley/promoter-slots/pkg/utils"
)

// MeetingRequest describes a video meeting to schedule
type MeetingRequest struct {
	RequestID   string // idempotency key for the conference request
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	TimeZone    string
	Attendees   []string
}

// Meeting is a scheduled calendar event with a video entry point
type Meeting struct {
	EventID  string
	VideoURI string
	HTMLLink string
}

// Client wraps the Google Calendar API client
type Client struct {
	service    *calendar.Service
	calendarID string
}

// NewClient creates a new Calendar client using an existing OAuth token
// The token should already contain all necessary scopes (calendar, gmail, sheets)
func NewClient(ctx context.Context, oauthCfg *config.OAuthClientConfig, token *oauth2.Token, calendarID string) (*Client, error) {
	oauthConfig, err := utils.GetOAuthConfig(oauthCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to get oauth config: %w", err)
	}

	httpClient := oauthConfig.Client(ctx, token)

	service, err := calendar.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	if calendarID == "" {
		calendarID = "primary"
	}

	return &Client{
		service:    service,
		calendarID: calendarID,
	}, nil
}

// CreateMeeting inserts a calendar event with a Google Meet conference and
// invites the attendees. Returns apperrors.ErrMeetingCreationFailed when the
// response carries no video entry point.
func (c *Client) CreateMeeting(ctx context.Context, req MeetingRequest) (*Meeting, error) {
	event, err := c.service.Events.Insert(c.calendarID, buildEvent(req)).
		ConferenceDataVersion(1).
		SendUpdates("all").
		Context(ctx).
		Do()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrExternalService, "failed to insert calendar event", err)
	}

	videoURI, ok := videoEntryPoint(event)
	if !ok {
		return nil, apperrors.ErrMeetingCreationFailed
	}

	return &Meeting{
		EventID:  event.Id,
		VideoURI: videoURI,
		HTMLLink: event.HtmlLink,
	}, nil
}

// buildEvent converts a MeetingRequest into a Calendar event with a Meet conference request
func buildEvent(req MeetingRequest) *calendar.Event {
	attendees := make([]*calendar.EventAttendee, 0, len(req.Attendees))
	for _, email := range req.Attendees {
		attendees = append(attendees, &calendar.EventAttendee{Email: email})
	}

	return &calendar.Event{
		Summary:     req.Summary,
		Description: req.Description,
		Start: &calendar.EventDateTime{
			DateTime: req.Start.Format(time.RFC3339),
			TimeZone: req.TimeZone,
		},
		End: &calendar.EventDateTime{
			DateTime: req.End.Format(time.RFC3339),
			TimeZone: req.TimeZone,
		},
		Attendees: attendees,
		ConferenceData: &calendar.ConferenceData{
			CreateRequest: &calendar.CreateConferenceRequest{
				RequestId: req.RequestID,
				ConferenceSolutionKey: &calendar.ConferenceSolutionKey{
					Type: "hangoutsMeet",
				},
			},
		},
		Reminders: &calendar.EventReminders{
			UseDefault: false,
			Overrides: []*calendar.EventReminder{
				{Method: "email", Minutes: 24 * 60},
				{Method: "popup", Minutes: 10},
			},
			ForceSendFields: []string{"UseDefault"},
		},
	}
}

// videoEntryPoint returns the URI of the video entry point of an event's conference
func videoEntryPoint(event *calendar.Event) (string, bool) {
	if event == nil || event.ConferenceData == nil {
		return "", false
	}
	for _, ep := range event.ConferenceData.EntryPoints {
		if ep != nil && ep.EntryPointType == "video" && ep.Uri != "" {
			return ep.Uri, true
		}
	}
	return "", false
}
