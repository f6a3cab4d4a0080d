package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Campus Timetable API",
        "description": "Weekly timetable generation, conflict checking and export for academic departments",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Timetables", "description": "Generation, persistence and export of weekly timetables"},
        {"name": "Faculty", "description": "Faculty perspective over stored timetables"},
        {"name": "Observability", "description": "Health, readiness and metrics"}
    ],
    "paths": {
        "/timetables/generate": {
            "post": {
                "tags": ["Timetables"],
                "summary": "Generate a timetable proposal",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/GenerateTimetableRequest"}}
                ],
                "responses": {
                    "200": {"description": "Proposal", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "201": {"description": "Proposal saved on commit", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid payload", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Manual schedule conflicts, listed under meta.conflicts", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/save": {
            "post": {
                "tags": ["Timetables"],
                "summary": "Save a timetable proposal",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/SaveTimetableRequest"}}
                ],
                "responses": {
                    "201": {"description": "Saved", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Proposal not found or expired"},
                    "409": {"description": "Proposal is stale"},
                    "423": {"description": "Department locked by another session"},
                    "429": {"description": "Storage quota exceeded after retries"}
                }
            }
        },
        "/timetables": {
            "get": {
                "tags": ["Timetables"],
                "summary": "List previous timetables",
                "parameters": [
                    {"in": "query", "name": "departmentId", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Timetable summaries", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables/{id}/slots": {
            "get": {
                "tags": ["Timetables"],
                "summary": "Get rows of a stored timetable",
                "parameters": [
                    {"in": "path", "name": "id", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Rows", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Timetable not found"}
                }
            }
        },
        "/timetables/{id}/export": {
            "get": {
                "tags": ["Timetables"],
                "summary": "Download a stored timetable as a weekly grid",
                "produces": ["application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "text/csv", "application/pdf"],
                "parameters": [
                    {"in": "path", "name": "id", "required": true, "type": "string"},
                    {"in": "query", "name": "format", "type": "string", "enum": ["xlsx", "csv", "pdf"], "default": "xlsx"}
                ],
                "responses": {
                    "200": {"description": "Grid file", "schema": {"type": "file"}}
                }
            }
        },
        "/timetables/clean": {
            "post": {
                "tags": ["Timetables"],
                "summary": "Validate stored rows and delete the invalid ones",
                "produces": ["application/json", "text/csv"],
                "parameters": [
                    {"in": "query", "name": "assignMissingIds", "type": "boolean"},
                    {"in": "query", "name": "format", "type": "string", "enum": ["json", "csv"], "default": "json"}
                ],
                "responses": {
                    "200": {"description": "Cleaning result", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/proposals/{id}": {
            "get": {
                "tags": ["Timetables"],
                "summary": "Get an unsaved timetable proposal",
                "parameters": [
                    {"in": "path", "name": "id", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Proposal", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Proposal not found or expired"}
                }
            }
        },
        "/proposals/{id}/export": {
            "get": {
                "tags": ["Timetables"],
                "summary": "Download an unsaved proposal as a weekly grid",
                "parameters": [
                    {"in": "path", "name": "id", "required": true, "type": "string"},
                    {"in": "query", "name": "format", "type": "string", "enum": ["xlsx", "csv", "pdf"], "default": "xlsx"}
                ],
                "responses": {
                    "200": {"description": "Grid file", "schema": {"type": "file"}}
                }
            }
        },
        "/faculty/{facultyId}/schedule": {
            "get": {
                "tags": ["Faculty"],
                "summary": "Get every stored class of a faculty member",
                "parameters": [
                    {"in": "path", "name": "facultyId", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Faculty schedule", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "SchedulingRequest": {
            "type": "object",
            "required": ["facultyId", "subjectId", "classesPerWeek", "duration"],
            "properties": {
                "facultyId": {"type": "string"},
                "facultyName": {"type": "string"},
                "subjectId": {"type": "string"},
                "subjectName": {"type": "string"},
                "classesPerWeek": {"type": "integer", "minimum": 1},
                "duration": {"type": "integer", "minimum": 1, "maximum": 3},
                "room": {"type": "string"}
            }
        },
        "ManualSlot": {
            "type": "object",
            "required": ["day", "startHour", "duration", "facultyId", "subjectId", "room"],
            "properties": {
                "day": {"type": "string", "enum": ["Monday", "Tuesday", "Wednesday", "Thursday", "Friday"]},
                "startHour": {"type": "integer"},
                "duration": {"type": "integer"},
                "facultyId": {"type": "string"},
                "subjectId": {"type": "string"},
                "room": {"type": "string"}
            }
        },
        "GenerateTimetableRequest": {
            "type": "object",
            "required": ["departmentId"],
            "properties": {
                "departmentId": {"type": "string"},
                "mode": {"type": "string", "enum": ["auto", "manual"]},
                "requests": {"type": "array", "items": {"$ref": "#/definitions/SchedulingRequest"}},
                "rooms": {"type": "array", "items": {"type": "string"}},
                "avoidFridayAfternoon": {"type": "boolean"},
                "manualSlots": {"type": "array", "items": {"$ref": "#/definitions/ManualSlot"}},
                "commit": {"type": "boolean"}
            }
        },
        "SaveTimetableRequest": {
            "type": "object",
            "required": ["proposalId"],
            "properties": {
                "proposalId": {"type": "string"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
