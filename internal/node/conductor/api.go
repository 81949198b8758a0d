package conductor

import (
	"context"
	"encoding/json"
	"fmt"

	state "github.com/eagraf/holochain-runner/core/state/conductor"
)

type ListAppInterfacesRequest struct {
	InstalledAppID string `json:"installed_app_id"`
}

type AppInterfaceInfo struct {
	Port           uint16 `json:"port"`
	InstalledAppID string `json:"installed_app_id"`
}

func (c *Conductor) handleAdmin(ctx context.Context, req *Request) (interface{}, error) {
	switch req.Type {
	case MsgListApps:
		s, err := c.state()
		if err != nil {
			return nil, err
		}
		return s.Apps, nil
	case MsgListAppInterfaces:
		var filter ListAppInterfacesRequest
		if len(req.Data) > 0 {
			if err := json.Unmarshal(req.Data, &filter); err != nil {
				return nil, fmt.Errorf("invalid %s request: %w", req.Type, err)
			}
		}
		s, err := c.state()
		if err != nil {
			return nil, err
		}
		res := make([]AppInterfaceInfo, 0, len(s.AppInterfaces))
		for _, iface := range s.AppInterfaces {
			if filter.InstalledAppID != "" && iface.InstalledAppID != filter.InstalledAppID {
				continue
			}
			res = append(res, AppInterfaceInfo{Port: iface.Port, InstalledAppID: iface.InstalledAppID})
		}
		return res, nil
	default:
		return nil, fmt.Errorf("unknown admin request type %q", req.Type)
	}
}

func (c *Conductor) handleApp(ctx context.Context, appID string, req *Request) (interface{}, error) {
	switch req.Type {
	case MsgAppInfo:
		s, err := c.state()
		if err != nil {
			return nil, err
		}
		app, ok := s.GetAppByID(appID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", state.ErrAppNotFound, appID)
		}
		return app, nil
	default:
		return nil, fmt.Errorf("unknown app request type %q", req.Type)
	}
}
