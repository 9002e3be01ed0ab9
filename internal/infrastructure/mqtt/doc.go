// Package mqtt provides the MQTT transport layer for AV Bridge Core.
//
// It wraps eclipse/paho.mqtt.golang with connection lifecycle management,
// automatic subscription restoration on reconnect, panic-safe message
// handlers, and topic builders for the avbridge/ hierarchy:
//
//	avbridge/command/{device}           commands to device drivers
//	avbridge/state/{device}             state updates from device drivers
//	avbridge/room/{room}/activate       scenario activation requests
//	avbridge/room/{room}/deactivate     scenario deactivation requests
//	avbridge/room/{room}/role/{r}/{a}   role-addressed actions
//	avbridge/room/{room}/report         scenario run reports (retained)
//	avbridge/room/{room}/status         room activity state (retained)
//	avbridge/system/status              bridge online/offline (retained, LWT)
package mqtt
