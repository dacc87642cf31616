package entity

// DeviceLoginData is the identity carried by a device access token.
type DeviceLoginData struct {
	ID           string
	RestaurantID string
	Table        int
	Kind         string
}

const (
	DeviceKiosk = "kiosk"
	DeviceTable = "table"
	DeviceStaff = "staff"
)
