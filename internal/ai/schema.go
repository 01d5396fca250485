package ai

import "encoding/json"

// summaryToolName is the function the model is forced to call.
const summaryToolName = "create_summary"

// SummaryToolSchema is the JSON-Schema parameter block for create_summary.
// It mirrors domain.SummaryJSON exactly: the six top-level arrays are all
// required, so a conforming response always decodes into the v1 schema.
var SummaryToolSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "summaryBullets": {
      "type": "array",
      "items": {"type": "string"},
      "description": "3-7 key bullet points summarizing the conversation"
    },
    "actionItems": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "task": {"type": "string"},
          "dueDate": {"type": "string", "description": "ISO date or null"},
          "priority": {"type": "string", "enum": ["low", "med", "high"]},
          "context": {"type": "string"}
        },
        "required": ["task", "priority"]
      },
      "description": "Action items identified in the conversation"
    },
    "agendaSuggestions": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "title": {"type": "string"},
          "datetime": {"type": "string", "description": "ISO datetime or null"},
          "durationMinutes": {"type": "number"},
          "context": {"type": "string"}
        },
        "required": ["title"]
      },
      "description": "Follow-up meetings or agenda suggestions"
    },
    "reminders": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "text": {"type": "string"},
          "triggerDateTime": {"type": "string", "description": "ISO datetime or null"}
        },
        "required": ["text"]
      },
      "description": "Reminders extracted from the conversation"
    },
    "importantFactsToRemember": {
      "type": "array",
      "items": {"type": "string"},
      "description": "Key facts, numbers, or decisions to remember"
    },
    "openQuestions": {
      "type": "array",
      "items": {"type": "string"},
      "description": "Unresolved questions from the conversation"
    }
  },
  "required": [
    "summaryBullets",
    "actionItems",
    "agendaSuggestions",
    "reminders",
    "importantFactsToRemember",
    "openQuestions"
  ]
}`)
