package chasm

// Opcode identifies one of the operations the dispatcher knows how to
// execute. The set is closed; scripts naming anything else fail to compile.
type Opcode int

const (
	OpInvalid Opcode = iota

	// Pump and transfer family.
	OpMove
	OpHome
	OpSeparate
	OpPrime
	OpClean
	OpSwitchVacuum
	OpSwitchCartridge
	OpSwitchColumn

	// Hotplate stirrer.
	OpStartStir
	OpStartHeat
	OpStopStir
	OpStopHeat
	OpSetTemp
	OpSetStirRPM
	OpStirrerWaitForTemp

	// Rotary evaporator.
	OpStartHeaterBath
	OpStopHeaterBath
	OpStartRotation
	OpStopRotation
	OpLiftArmUp
	OpLiftArmDown
	OpResetRotavap
	OpSetBathTemp
	OpSetRotation
	OpRVWaitForTemp
	OpSetInterval

	// Vacuum pump.
	OpInitVacPump
	OpGetVacSP
	OpSetVacSP
	OpStartVac
	OpStopVac
	OpVentVac
	OpGetVacStatus
	OpGetEndVacSP
	OpSetEndVacSP
	OpGetRuntimeSP
	OpSetRuntimeSP
	OpSetSpeedSP

	// Recirculation chiller.
	OpStartChiller
	OpStopChiller
	OpSetChiller
	OpChillerWaitForTemp
	OpRampChiller
	OpSwitchChiller
	OpSetCoolingPower

	// Camera and control flow.
	OpSetRecordingSpeed
	OpWait
	OpBreakpoint
)

var opcodeByName = map[string]Opcode{
	"MOVE":                  OpMove,
	"HOME":                  OpHome,
	"SEPARATE":              OpSeparate,
	"PRIME":                 OpPrime,
	"CLEAN":                 OpClean,
	"SWITCH_VACUUM":         OpSwitchVacuum,
	"SWITCH_CARTRIDGE":      OpSwitchCartridge,
	"SWITCH_COLUMN":         OpSwitchColumn,
	"START_STIR":            OpStartStir,
	"START_HEAT":            OpStartHeat,
	"STOP_STIR":             OpStopStir,
	"STOP_HEAT":             OpStopHeat,
	"SET_TEMP":              OpSetTemp,
	"SET_STIR_RPM":          OpSetStirRPM,
	"STIRRER_WAIT_FOR_TEMP": OpStirrerWaitForTemp,
	"START_HEATER_BATH":     OpStartHeaterBath,
	"STOP_HEATER_BATH":      OpStopHeaterBath,
	"START_ROTATION":        OpStartRotation,
	"STOP_ROTATION":         OpStopRotation,
	"LIFT_ARM_UP":           OpLiftArmUp,
	"LIFT_ARM_DOWN":         OpLiftArmDown,
	"RESET_ROTAVAP":         OpResetRotavap,
	"SET_BATH_TEMP":         OpSetBathTemp,
	"SET_ROTATION":          OpSetRotation,
	"RV_WAIT_FOR_TEMP":      OpRVWaitForTemp,
	"SET_INTERVAL":          OpSetInterval,
	"INIT_VAC_PUMP":         OpInitVacPump,
	"GET_VAC_SP":            OpGetVacSP,
	"SET_VAC_SP":            OpSetVacSP,
	"START_VAC":             OpStartVac,
	"STOP_VAC":              OpStopVac,
	"VENT_VAC":              OpVentVac,
	"GET_VAC_STATUS":        OpGetVacStatus,
	"GET_END_VAC_SP":        OpGetEndVacSP,
	"SET_END_VAC_SP":        OpSetEndVacSP,
	"GET_RUNTIME_SP":        OpGetRuntimeSP,
	"SET_RUNTIME_SP":        OpSetRuntimeSP,
	"SET_SPEED_SP":          OpSetSpeedSP,
	"START_CHILLER":         OpStartChiller,
	"STOP_CHILLER":          OpStopChiller,
	"SET_CHILLER":           OpSetChiller,
	"CHILLER_WAIT_FOR_TEMP": OpChillerWaitForTemp,
	"RAMP_CHILLER":          OpRampChiller,
	"SWITCH_CHILLER":        OpSwitchChiller,
	"SET_COOLING_POWER":     OpSetCoolingPower,
	"SET_RECORDING_SPEED":   OpSetRecordingSpeed,
	"WAIT":                  OpWait,
	"BREAKPOINT":            OpBreakpoint,
}

var opcodeNames = func() map[Opcode]string {
	names := make(map[Opcode]string, len(opcodeByName))
	for name, op := range opcodeByName {
		names[op] = name
	}
	return names
}()

// ParseOpcode resolves an all-caps mnemonic to its Opcode.
func ParseOpcode(name string) (Opcode, bool) {
	op, ok := opcodeByName[name]
	return op, ok
}

func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return "INVALID"
}
