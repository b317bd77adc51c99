// Package actions declares the tools exposed to the speech model and
// dispatches its tool invocations to the service collaborators.
package actions

import (
	"slices"

	"github.com/bt-bridge/voicebridge/store"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/realtime"
)

type ActionName string

const (
	ActionSearchKnowledge ActionName = "search_knowledge"
	ActionTransferCall    ActionName = "transfer_call"
	ActionSendMessage     ActionName = "send_sms"
	ActionBookAppointment ActionName = "book_appointment"
	ActionEndCall         ActionName = "end_call"
)

type EndReason string

const (
	EndReasonCompleted EndReason = "completed"
	EndReasonSilent    EndReason = "silent"
	EndReasonSpam      EndReason = "spam"
	EndReasonAbusive   EndReason = "abusive"
)

func ValidEndReason(r EndReason) bool {
	switch r {
	case EndReasonCompleted, EndReasonSilent, EndReasonSpam, EndReasonAbusive:
		return true
	}
	return false
}

func functionTool(name ActionName, description string, parameters map[string]any) realtime.RealtimeToolsConfigUnionParam {
	return realtime.RealtimeToolsConfigUnionParam{
		OfFunction: &realtime.RealtimeFunctionToolParam{
			Type:        "function",
			Name:        param.NewOpt(string(name)),
			Description: param.NewOpt(description),
			Parameters:  parameters,
		},
	}
}

// Tools builds the tool list for one destination. end_call is always
// declared; the rest follow the destination's allowed actions.
func Tools(cfg *store.CallConfig) realtime.RealtimeToolsConfigParam {
	allowed := func(name ActionName) bool {
		return slices.Contains(cfg.AllowedActions, string(name))
	}

	tools := realtime.RealtimeToolsConfigParam{
		functionTool(
			ActionEndCall,
			"End the call. Use after wrapping up normally, or when the caller is silent, a spam robot, or abusive.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"reason": map[string]any{
						"type": "string",
						"enum": []string{
							string(EndReasonCompleted),
							string(EndReasonSilent),
							string(EndReasonSpam),
							string(EndReasonAbusive),
						},
					},
				},
				"required": []string{"reason"},
			},
		),
	}

	if allowed(ActionSearchKnowledge) {
		tools = append(tools, functionTool(
			ActionSearchKnowledge,
			"Look up information about this business to answer the caller's question.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "The caller's question, rephrased as a search query.",
					},
				},
				"required": []string{"query"},
			},
		))
	}
	if allowed(ActionTransferCall) {
		tools = append(tools, functionTool(
			ActionTransferCall,
			"Transfer the caller to a human at the business's forwarding number.",
			map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		))
	}
	if allowed(ActionSendMessage) {
		tools = append(tools, functionTool(
			ActionSendMessage,
			"Send an SMS text message on behalf of the business.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"to":   map[string]any{"type": "string", "description": "Recipient phone number in E.164 format."},
					"body": map[string]any{"type": "string", "description": "Message text."},
				},
				"required": []string{"to", "body"},
			},
		))
	}
	if allowed(ActionBookAppointment) {
		tools = append(tools, functionTool(
			ActionBookAppointment,
			"Book an appointment for the caller.",
			map[string]any{
				"type": "object",
				"properties": map[string]any{
					"caller_name":  map[string]any{"type": "string"},
					"caller_phone": map[string]any{"type": "string"},
					"caller_email": map[string]any{"type": "string"},
					"date":         map[string]any{"type": "string", "description": "YYYY-MM-DD"},
					"time":         map[string]any{"type": "string", "description": "HH:MM, 24-hour"},
					"service_type": map[string]any{"type": "string"},
					"notes":        map[string]any{"type": "string"},
				},
				"required": []string{"caller_name", "date", "time"},
			},
		))
	}
	return tools
}
