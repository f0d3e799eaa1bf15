package sinkid

import "github.com/ta-061/tee-flow-inspector/model"

// ruleBasedSinks is the small hardcoded table of well-known dangerous OP-TEE
// Internal Core API calls, checked before spending an LLM call on a
// function whose answer is already certain. Not a downloadable ruleset —
// just the handful of APIs any TEE security reviewer would flag on sight.
var ruleBasedSinks = map[string][]model.Sink{
	"TEE_MemMove": {
		{FunctionName: "TEE_MemMove", ParamIndex: 0, Reason: "destination buffer may cross the TA/untrusted-world boundary", Method: model.SinkDecisionRule},
	},
	"memcpy": {
		{FunctionName: "memcpy", ParamIndex: 0, Reason: "destination buffer may cross the TA/untrusted-world boundary", Method: model.SinkDecisionRule},
	},
	"TEE_CipherDoFinal": {
		{FunctionName: "TEE_CipherDoFinal", ParamIndex: 4, Reason: "output buffer may be written to shared memory unencrypted", Method: model.SinkDecisionRule},
	},
	"TEE_MemFill": {
		{FunctionName: "TEE_MemFill", ParamIndex: 0, Reason: "destination buffer may cross the TA/untrusted-world boundary", Method: model.SinkDecisionRule},
	},
}

// ruleBasedMatch returns the short-circuit sinks for name, if any.
func ruleBasedMatch(name string) ([]model.Sink, bool) {
	sinks, ok := ruleBasedSinks[name]
	return sinks, ok
}
