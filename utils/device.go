package utils

import (
	"strings"

	"abfeedback/api/models"
)

// DeviceTypeForWidth classifies a viewport width in CSS pixels.
func DeviceTypeForWidth(width int) models.DeviceType {
	switch {
	case width <= 0:
		return models.DeviceDesktop
	case width < 768:
		return models.DeviceMobile
	case width < 1024:
		return models.DeviceTablet
	default:
		return models.DeviceDesktop
	}
}

// DeviceTypeFromUserAgent is a coarse fallback used when the client did not
// report a device type.
func DeviceTypeFromUserAgent(ua string) models.DeviceType {
	ua = strings.ToLower(ua)
	switch {
	case strings.Contains(ua, "ipad"), strings.Contains(ua, "tablet"):
		return models.DeviceTablet
	case strings.Contains(ua, "mobi"), strings.Contains(ua, "iphone"), strings.Contains(ua, "android"):
		return models.DeviceMobile
	default:
		return models.DeviceDesktop
	}
}
