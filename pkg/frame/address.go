package frame

import "fmt"

// Destination addresses are opaque interpolated strings; the platform
// routes on them, clients never parse them back apart.

// SessionAddress routes to the session service of the current connection.
func SessionAddress() string { return "SERV:sess:" }

// ServiceAddress routes to a named platform service.
func ServiceAddress(name string) string { return fmt.Sprintf("SERV:%s:", name) }

func PlaceAddress(placeID string) string { return fmt.Sprintf("SERV:place:%s", placeID) }

func PersonAddress(personID string) string { return fmt.Sprintf("SERV:person:%s", personID) }

func SceneAddress(sceneID string) string { return fmt.Sprintf("SERV:scene:%s", sceneID) }

func RuleAddress(ruleID string) string { return fmt.Sprintf("SERV:rule:%s", ruleID) }

func DeviceAddress(deviceID string) string { return fmt.Sprintf("DRIV:dev:%s", deviceID) }

// HubAddress follows the hub's own addressing pattern, which differs from
// every other entity on the platform.
func HubAddress(hubID string) string { return fmt.Sprintf("HUB:%s:hub", hubID) }
