// Package docs holds the OpenAPI description served at /swagger.
// Regenerate with `swag init -g cmd/taskflow/main.go` after changing handler annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "paths": {
        "/projects/{projectId}/tasks": {
            "get": {
                "tags": ["Tasks"],
                "summary": "List tasks",
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "name": "projectId", "in": "path", "required": true},
                    {"type": "string", "name": "status", "in": "query"},
                    {"type": "string", "name": "assignee_id", "in": "query"},
                    {"type": "string", "name": "sprint_id", "in": "query"},
                    {"type": "string", "name": "epic_id", "in": "query"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/handlers.taskResponse"}}}}
            },
            "post": {
                "tags": ["Tasks"],
                "summary": "Create task",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "name": "projectId", "in": "path", "required": true},
                    {"name": "task", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.createTaskRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handlers.taskResponse"}},
                    "400": {"description": "Bad Request"},
                    "403": {"description": "Forbidden"}
                }
            }
        },
        "/projects/{projectId}/tasks/{taskId}": {
            "get": {
                "tags": ["Tasks"],
                "summary": "Get task",
                "parameters": [
                    {"type": "string", "name": "projectId", "in": "path", "required": true},
                    {"type": "string", "name": "taskId", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.taskResponse"}}, "404": {"description": "Not Found"}}
            },
            "put": {
                "tags": ["Tasks"],
                "summary": "Update task",
                "description": "Partial update. Fields left out are untouched; \"\" clears nullable fields.",
                "parameters": [
                    {"type": "string", "name": "projectId", "in": "path", "required": true},
                    {"type": "string", "name": "taskId", "in": "path", "required": true},
                    {"name": "task", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.updateTaskRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.taskResponse"}},
                    "400": {"description": "Bad Request"},
                    "403": {"description": "Forbidden"},
                    "404": {"description": "Not Found"}
                }
            },
            "delete": {
                "tags": ["Tasks"],
                "summary": "Delete task",
                "description": "Soft-deletes the task and its direct subtasks. Only the creator or a project owner may delete.",
                "parameters": [
                    {"type": "string", "name": "projectId", "in": "path", "required": true},
                    {"type": "string", "name": "taskId", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}, "404": {"description": "Not Found"}}
            }
        },
        "/projects/{projectId}/tasks/{taskId}/audit": {
            "get": {
                "tags": ["Audit"],
                "summary": "Task audit trail",
                "parameters": [
                    {"type": "string", "name": "projectId", "in": "path", "required": true},
                    {"type": "string", "name": "taskId", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.AuditEntry"}}}}
            }
        },
        "/notifications": {
            "get": {
                "tags": ["Notifications"],
                "summary": "List my notifications",
                "parameters": [
                    {"type": "boolean", "name": "unread", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.Notification"}}}}
            }
        }
    },
    "definitions": {
        "handlers.createTaskRequest": {
            "type": "object",
            "required": ["title"],
            "properties": {
                "title": {"type": "string"},
                "description": {"type": "string"},
                "priority": {"type": "string"},
                "due_date": {"type": "string"},
                "sprint_id": {"type": "string"},
                "epic_id": {"type": "string"},
                "assignee_ids": {"type": "array", "items": {"type": "string"}},
                "assignee_id": {"type": "string"}
            }
        },
        "handlers.updateTaskRequest": {
            "type": "object",
            "properties": {
                "title": {"type": "string"},
                "description": {"type": "string"},
                "status": {"type": "string"},
                "priority": {"type": "string"},
                "due_date": {"type": "string"},
                "sprint_id": {"type": "string"},
                "epic_id": {"type": "string"},
                "assignee_ids": {"type": "array", "items": {"type": "string"}},
                "assignee_id": {"type": "string"}
            }
        },
        "handlers.taskResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "title": {"type": "string"},
                "description": {"type": "string"},
                "status": {"type": "string"},
                "priority": {"type": "string"},
                "due_date": {"type": "string"},
                "project_id": {"type": "string"},
                "sprint_id": {"type": "string"},
                "epic_id": {"type": "string"},
                "parent_task_id": {"type": "string"},
                "created_by_id": {"type": "string"},
                "assignee_ids": {"type": "array", "items": {"type": "string"}},
                "assignee_id": {"type": "string"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "models.AuditEntry": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "task_id": {"type": "string"},
                "field": {"type": "string"},
                "old_value": {"type": "string"},
                "new_value": {"type": "string"},
                "actor_id": {"type": "string"},
                "created_at": {"type": "string"}
            }
        },
        "models.Notification": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "recipient_id": {"type": "string"},
                "kind": {"type": "string"},
                "task_id": {"type": "string"},
                "project_id": {"type": "string"},
                "message": {"type": "string"},
                "is_read": {"type": "boolean"},
                "created_at": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "taskflow API",
	Description:      "Project task tracking: tasks, subtasks, audit trail and notifications.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
