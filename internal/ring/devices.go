package ring

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ringlink/ringlink/internal/models"
)

// UserInfo is the subset of GET /user/info we care about.
type UserInfo struct {
	UserID    int64  `json:"user_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type userInfoEnvelope struct {
	User UserInfo `json:"user"`
}

// subscriptionRequest is the PATCH /subscription body. The correlation
// token rides in a Pragma header the push service echoes back verbatim on
// every delivery.
type subscriptionRequest struct {
	Subscription struct {
		PostbackURL string `json:"postback_url"`
		Metadata    struct {
			Headers struct {
				Pragma string `json:"Pragma"`
			} `json:"headers"`
		} `json:"metadata"`
	} `json:"subscription"`
}

// Devices fetches the partitioned device listing.
func (c *Client) Devices(ctx context.Context) (*models.DeviceListing, error) {
	var listing models.DeviceListing
	if err := c.Call(ctx, http.MethodGet, "/devices", nil, &listing); err != nil {
		return nil, err
	}
	return &listing, nil
}

// UserInfo fetches the authorized user's profile.
func (c *Client) UserInfo(ctx context.Context) (*UserInfo, error) {
	var envelope userInfoEnvelope
	if err := c.Call(ctx, http.MethodGet, "/user/info", nil, &envelope); err != nil {
		return nil, err
	}
	return &envelope.User, nil
}

// SetFloodlight turns a device's floodlight on or off.
func (c *Client) SetFloodlight(ctx context.Context, deviceID int64, on bool) error {
	action := "floodlight_off"
	if on {
		action = "floodlight_on"
	}
	path := fmt.Sprintf("/devices/%d/%s", deviceID, action)
	return c.Call(ctx, http.MethodPut, path, nil, nil)
}

// CreateSubscription registers (or replaces) the webhook subscription.
func (c *Client) CreateSubscription(ctx context.Context, sub models.Subscription) error {
	var req subscriptionRequest
	req.Subscription.PostbackURL = sub.PostbackURL
	req.Subscription.Metadata.Headers.Pragma = sub.CorrelationToken
	return c.Call(ctx, http.MethodPatch, "/subscription", req, nil)
}

// DeleteSubscription removes the webhook subscription.
func (c *Client) DeleteSubscription(ctx context.Context) error {
	return c.Call(ctx, http.MethodDelete, "/subscription", nil, nil)
}

// DeviceByID finds a device across all partitions of a listing. The id is
// the decimal device identifier as it appears in webhook payloads and node
// addresses.
func DeviceByID(listing *models.DeviceListing, id string) (*models.Device, bool) {
	want, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, false
	}
	for _, group := range [][]models.Device{listing.Doorbells, listing.AuthorizedDoorbells, listing.StickupCams} {
		for i := range group {
			if group[i].ID == want {
				return &group[i], true
			}
		}
	}
	return nil, false
}
