package upnp

import (
	"encoding/xml"
	"fmt"
)

const (
	// DeviceType identifies this server on the network.
	DeviceType = "urn:schemas-upnp-org:device:MediaServer:1"

	// ContentDirectoryType and ConnectionManagerType are the service types
	// the device description advertises.
	ContentDirectoryType  = "urn:schemas-upnp-org:service:ContentDirectory:1"
	ConnectionManagerType = "urn:schemas-upnp-org:service:ConnectionManager:1"

	contentDirectoryID  = "urn:upnp-org:serviceId:ContentDirectory"
	connectionManagerID = "urn:upnp-org:serviceId:ConnectionManager"
)

type deviceDescription struct {
	XMLName     xml.Name    `xml:"urn:schemas-upnp-org:device-1-0 root"`
	SpecVersion specVersion `xml:"specVersion"`
	Device      device      `xml:"device"`
}

type specVersion struct {
	Major int `xml:"major"`
	Minor int `xml:"minor"`
}

type device struct {
	DeviceType   string    `xml:"deviceType"`
	FriendlyName string    `xml:"friendlyName"`
	Manufacturer string    `xml:"manufacturer"`
	ModelName    string    `xml:"modelName"`
	UDN          string    `xml:"UDN"`
	ServiceList  []service `xml:"serviceList>service"`
}

type service struct {
	ServiceType string `xml:"serviceType"`
	ServiceID   string `xml:"serviceId"`
	SCPDURL     string `xml:"SCPDURL"`
	ControlURL  string `xml:"controlURL"`
	EventSubURL string `xml:"eventSubURL"`
}

// DeviceDescription renders the root device document served at /device.xml.
func DeviceDescription(friendlyName, udn string) (string, error) {
	doc := deviceDescription{
		SpecVersion: specVersion{Major: 1, Minor: 0},
		Device: device{
			DeviceType:   DeviceType,
			FriendlyName: friendlyName,
			Manufacturer: "async-upnp-media-server",
			ModelName:    "async-upnp-media-server",
			UDN:          "uuid:" + udn,
			ServiceList: []service{
				{
					ServiceType: ContentDirectoryType,
					ServiceID:   contentDirectoryID,
					SCPDURL:     "/scpd/ContentDirectory.xml",
					ControlURL:  "/control/ContentDirectory",
					EventSubURL: "/event/ContentDirectory",
				},
				{
					ServiceType: ConnectionManagerType,
					ServiceID:   connectionManagerID,
					SCPDURL:     "/scpd/ConnectionManager.xml",
					ControlURL:  "/control/ConnectionManager",
					EventSubURL: "/event/ConnectionManager",
				},
			},
		},
	}

	out, err := xml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("upnp: render device description: %w", err)
	}
	return xml.Header + string(out), nil
}
