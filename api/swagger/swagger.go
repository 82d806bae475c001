package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Timetable API",
        "description": "Timetable slot assignment: placements, conflict detection, split/merge and automatic scheduling.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Timetable", "description": "Placements on the weekly grid"},
        {"name": "Subjects", "description": "Split, merge and co-teaching links"},
        {"name": "Scheduler", "description": "Automatic placement search"}
    ],
    "paths": {
        "/timetable": {
            "get": {
                "tags": ["Timetable"],
                "summary": "List placements",
                "description": "Returns an empty list when no filter is given. Teachers only see their own placements.",
                "parameters": [
                    {"name": "roomId", "in": "query", "type": "integer"},
                    {"name": "teacherId", "in": "query", "type": "integer"},
                    {"name": "termYear", "in": "query", "type": "string"},
                    {"name": "yearLevel", "in": "query", "type": "string"},
                    {"name": "planType", "in": "query", "type": "string", "enum": ["TRANSFER", "FOUR_YEAR", "DVE-MSIX", "DVE-LVC"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Timetable"],
                "summary": "Place a subject on the timetable",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AssignTimetableRequest"}}
                ],
                "responses": {
                    "200": {"description": "Placed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid placement", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Subject not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Conflicts", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetable/me": {
            "get": {
                "tags": ["Timetable"],
                "summary": "List the caller's own placements",
                "parameters": [
                    {"name": "termYear", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Caller is not a teacher", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetable/{subjectId}": {
            "delete": {
                "tags": ["Timetable"],
                "summary": "Remove a subject's placement",
                "parameters": [
                    {"name": "subjectId", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/subject/split": {
            "post": {
                "tags": ["Subjects"],
                "summary": "Split a subject into two parts",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SplitSubjectRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Hours do not add up", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/subject/merge": {
            "post": {
                "tags": ["Subjects"],
                "summary": "Merge split parts back into one subject",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubjectRef"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/subject/co-teaching/check": {
            "get": {
                "tags": ["Subjects"],
                "summary": "Report a subject's co-teaching group",
                "parameters": [
                    {"name": "subjectId", "in": "query", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/subject/co-teaching": {
            "post": {
                "tags": ["Subjects"],
                "summary": "Link subjects as co-taught",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LinkCoTeachingRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Subjects"],
                "summary": "Remove subjects from a co-teaching group",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LinkCoTeachingRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/scheduler/scope": {
            "post": {
                "tags": ["Scheduler"],
                "summary": "Auto-place unplaced subjects of one scope",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ScopeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Scheduler disabled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/scheduler/curriculum": {
            "post": {
                "tags": ["Scheduler"],
                "summary": "Auto-place a whole curriculum",
                "parameters": [
                    {"name": "async", "in": "query", "type": "boolean"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CurriculumRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "202": {"description": "Run queued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Scheduler disabled or busy", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/scheduler/clear": {
            "post": {
                "tags": ["Scheduler"],
                "summary": "Remove every placement of a curriculum",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CurriculumRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/scheduler/runs/{id}": {
            "get": {
                "tags": ["Scheduler"],
                "summary": "Fetch an asynchronous run",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown run", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "AssignTimetableRequest": {
            "type": "object",
            "required": ["planId", "termYear", "yearLevel", "planType", "day", "startPeriod", "endPeriod"],
            "properties": {
                "planId": {"type": "integer"},
                "termYear": {"type": "string", "example": "1/2567"},
                "yearLevel": {"type": "string"},
                "planType": {"type": "string"},
                "day": {"type": "integer", "minimum": 0, "maximum": 6},
                "startPeriod": {"type": "integer", "minimum": 0, "maximum": 24},
                "endPeriod": {"type": "integer", "minimum": 0, "maximum": 24},
                "roomId": {"type": "integer"},
                "teacherId": {"type": "integer"},
                "section": {"type": "string"}
            }
        },
        "SplitPart": {
            "type": "object",
            "properties": {
                "lectureHour": {"type": "integer"},
                "labHour": {"type": "integer"},
                "partNumber": {"type": "integer"}
            }
        },
        "SplitSubjectRequest": {
            "type": "object",
            "required": ["subjectId", "splitData"],
            "properties": {
                "subjectId": {"type": "integer"},
                "splitData": {
                    "type": "object",
                    "properties": {
                        "part1": {"$ref": "#/definitions/SplitPart"},
                        "part2": {"$ref": "#/definitions/SplitPart"}
                    }
                }
            }
        },
        "SubjectRef": {
            "type": "object",
            "required": ["subjectId"],
            "properties": {
                "subjectId": {"type": "integer"}
            }
        },
        "LinkCoTeachingRequest": {
            "type": "object",
            "required": ["subjectIds"],
            "properties": {
                "subjectIds": {"type": "array", "items": {"type": "integer"}},
                "groupKey": {"type": "string"}
            }
        },
        "ScopeRequest": {
            "type": "object",
            "required": ["termYear", "yearLevel", "planType"],
            "properties": {
                "termYear": {"type": "string"},
                "yearLevel": {"type": "string"},
                "planType": {"type": "string"},
                "planIds": {"type": "array", "items": {"type": "integer"}}
            }
        },
        "CurriculumRequest": {
            "type": "object",
            "required": ["termYear"],
            "properties": {
                "termYear": {"type": "string"},
                "tracks": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "planType": {"type": "string"},
                            "yearLevels": {"type": "array", "items": {"type": "string"}}
                        }
                    }
                }
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
                "conflicts": {"type": "array", "items": {"type": "object"}},
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
