package outbox

const avatarGeneratedSchema = `{
  "type": "object",
  "title": "AvatarGenerated",
  "properties": {
    "avatar_id": {"type": "string"},
    "tenant_id": {"type": "string"},
    "user_id": {"type": "string"},
    "backend": {"type": "string"},
    "gender": {"type": "string"},
    "scale": {"type": "number"},
    "personalization_applied": {"type": "boolean"},
    "generated_at": {"type": "string", "format": "date-time"}
  },
  "required": ["avatar_id", "tenant_id", "user_id", "backend", "gender", "scale", "personalization_applied", "generated_at"],
  "additionalProperties": false
}`

const morphCompletedSchema = `{
  "type": "object",
  "title": "MorphCompleted",
  "properties": {
    "sequence_id": {"type": "string"},
    "tenant_id": {"type": "string"},
    "user_id": {"type": "string"},
    "start_avatar_id": {"type": "string"},
    "end_avatar_id": {"type": "string"},
    "steps": {"type": "integer"},
    "backend": {"type": "string"},
    "completed_at": {"type": "string", "format": "date-time"}
  },
  "required": ["sequence_id", "tenant_id", "user_id", "start_avatar_id", "end_avatar_id", "steps", "backend", "completed_at"],
  "additionalProperties": false
}`
