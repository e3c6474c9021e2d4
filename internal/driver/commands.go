// internal/driver/commands.go
package driver

// CommandID is the numeric opcode leading every frame
type CommandID int

// Primary tool opcodes
const (
	ToolGetIdentity             CommandID = 0
	ToolGetStatus               CommandID = 1
	ToolReset                   CommandID = 2
	ToolGetToolID               CommandID = 3
	ToolGetAnglesAndLength      CommandID = 10
	ToolGetJawTorque            CommandID = 11
	ToolSetJawOpeningAngle      CommandID = 12
	ToolGetLastPWM              CommandID = 13
	ToolGetMotorScalingValues   CommandID = 14
	ToolGetLastCollisionForce   CommandID = 15
	ToolSetMotorForceAndTorques CommandID = 30
	ToolSetTipForceAndRotTorque CommandID = 31
	ToolSetManualPWM            CommandID = 35
	ToolSetDeadBandPWMWidth     CommandID = 36
)

// IBox opcodes. The housekeeping ids are shared with the tool firmware.
const (
	IBoxGetIdentity      CommandID = 0
	IBoxGetStatus        CommandID = 1
	IBoxReset            CommandID = 2
	IBoxGetToolID        CommandID = 3
	IBoxGetOpeningValues CommandID = 10
	IBoxSetAllForces     CommandID = 20
	IBoxSetLoopGain      CommandID = 21
)

// IBoxNumChannels is the number of force channels in an IBox frame
const IBoxNumChannels = 6

// IBoxNumTools is the number of opening values reported by an IBox
const IBoxNumTools = 4

var toolCommandNames = map[CommandID]string{
	ToolGetIdentity:             "GET_IDENTITY",
	ToolGetStatus:               "GET_STATUS",
	ToolReset:                   "RESET",
	ToolGetToolID:               "GET_TOOL_ID",
	ToolGetAnglesAndLength:      "GET_ANGLES_AND_LENGTH",
	ToolGetJawTorque:            "GET_TOOL_JAW_TORQUE",
	ToolSetJawOpeningAngle:      "SET_TOOL_JAW_OPENING_ANGLE",
	ToolGetLastPWM:              "GET_LAST_PWM",
	ToolGetMotorScalingValues:   "GET_MOTOR_SCALING_VALUES",
	ToolGetLastCollisionForce:   "GET_LAST_COLLISION_FORCE",
	ToolSetMotorForceAndTorques: "SET_MOTOR_FORCE_AND_TORQUES",
	ToolSetTipForceAndRotTorque: "SET_TIP_FORCE_AND_ROT_TORQUE",
	ToolSetManualPWM:            "SET_MANUAL_PWM",
	ToolSetDeadBandPWMWidth:     "SET_DEAD_BAND_PWM_WIDTH",
}

var iboxCommandNames = map[CommandID]string{
	IBoxGetIdentity:      "GET_IDENTITY",
	IBoxGetStatus:        "GET_STATUS",
	IBoxReset:            "RESET",
	IBoxGetToolID:        "GET_TOOL_ID",
	IBoxGetOpeningValues: "GET_IBOX_OPENING_VALUES",
	IBoxSetAllForces:     "SET_IBOX_ALL_FORCES",
	IBoxSetLoopGain:      "SET_IBOX_LOOP_GAIN",
}

// ToolCommandName returns the firmware name of a tool opcode
func ToolCommandName(id CommandID) string {
	if name, ok := toolCommandNames[id]; ok {
		return name
	}
	return "UNKNOWN"
}

// IBoxCommandName returns the firmware name of an IBox opcode
func IBoxCommandName(id CommandID) string {
	if name, ok := iboxCommandNames[id]; ok {
		return name
	}
	return "UNKNOWN"
}

// commandSet lets the shared base driver address either firmware
type commandSet struct {
	identity CommandID
	status   CommandID
	reset    CommandID
	toolID   CommandID
	name     func(CommandID) string
}

var toolCommands = commandSet{
	identity: ToolGetIdentity,
	status:   ToolGetStatus,
	reset:    ToolReset,
	toolID:   ToolGetToolID,
	name:     ToolCommandName,
}

var iboxCommands = commandSet{
	identity: IBoxGetIdentity,
	status:   IBoxGetStatus,
	reset:    IBoxReset,
	toolID:   IBoxGetToolID,
	name:     IBoxCommandName,
}
