package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Sunrise Clinic Booking API",
        "description": "Multi-location appointment booking backend",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {"name": "Auth", "description": "Login, token refresh and password management"},
        {"name": "Users", "description": "Profile and account administration"},
        {"name": "Patients", "description": "Patients managed by the signed-in account"},
        {"name": "Catalog", "description": "Locations, services, technicians and offerings"},
        {"name": "Schedule", "description": "Working hours and slot availability"},
        {"name": "Appointments", "description": "Booking, cancellation and administration"},
        {"name": "Exports", "description": "Asynchronous schedule exports"},
        {"name": "Metrics", "description": "Runtime metrics"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate with email and password",
                "responses": {
                    "200": {"description": "Access and refresh tokens"},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Auth"],
                "summary": "Rotate a refresh token",
                "responses": {
                    "200": {"description": "New token pair"},
                    "401": {"description": "Expired or revoked token"}
                }
            }
        },
        "/schedule/availability": {
            "get": {
                "tags": ["Schedule"],
                "summary": "Annotated slot grid for a technician day",
                "parameters": [
                    {"name": "technician_id", "in": "query", "type": "string", "required": true},
                    {"name": "service_id", "in": "query", "type": "string", "required": true},
                    {"name": "location_id", "in": "query", "type": "string", "required": true},
                    {"name": "date", "in": "query", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Slot list"},
                    "404": {"description": "Unknown offering"}
                }
            }
        },
        "/appointments": {
            "post": {
                "tags": ["Appointments"],
                "summary": "Book a slot for a managed patient",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Appointment created"},
                    "409": {"description": "Slot no longer available"}
                }
            }
        },
        "/admin/exports/schedule": {
            "post": {
                "tags": ["Exports"],
                "summary": "Queue a technician day-schedule export",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "202": {"description": "Job accepted"},
                    "403": {"description": "Exports disabled"}
                }
            }
        }
    },
    "definitions": {
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_items": {"type": "integer"},
                "total_pages": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
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
