// Package docs holds the OpenAPI description served under /swagger/.
// Regenerate with `swag init -g internal/api/api.go -o internal/api/docs`.
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
    "paths": {
        "/data/files": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["data"],
                "summary": "Register a data file",
                "parameters": [
                    {
                        "description": "File name, type and image properties",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/store.DataFile"}
                    }
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/api.Envelope"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.Envelope"}}
                }
            }
        },
        "/layers": {
            "get": {
                "produces": ["application/json"],
                "tags": ["layers"],
                "summary": "List layers",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.Envelope"}}
                }
            }
        },
        "/model/model-list": {
            "get": {
                "produces": ["application/json"],
                "tags": ["model"],
                "summary": "List models",
                "parameters": [
                    {"type": "integer", "default": 0, "description": "Offset", "name": "offset", "in": "query"},
                    {"type": "integer", "default": 50, "description": "Limit", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.Envelope"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.Envelope"}}
                }
            }
        },
        "/model/run": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["model"],
                "summary": "Train a model",
                "parameters": [
                    {
                        "description": "Model to train",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/api.RunRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.Envelope"}},
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/api.Envelope"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.Envelope"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/api.Envelope"}}
                }
            }
        },
        "/model/save": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["model"],
                "summary": "Save a model architecture",
                "parameters": [
                    {
                        "description": "Model name and canvas graph",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/api.SaveRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.Envelope"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.Envelope"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/api.Envelope"}}
                }
            }
        },
        "/model/training-config": {
            "patch": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["model"],
                "summary": "Set training configuration",
                "parameters": [
                    {
                        "description": "Training configuration",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/api.TrainingConfigRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.Envelope"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.Envelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.Envelope"}}
                }
            }
        },
        "/model/validate": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["model"],
                "summary": "Validate and save a model",
                "parameters": [
                    {
                        "description": "Canvas graph and training setup",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/api.ValidateRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.Envelope"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.Envelope"}}
                }
            }
        },
        "/model/{id}": {
            "delete": {
                "produces": ["application/json"],
                "tags": ["model"],
                "summary": "Delete a model",
                "parameters": [
                    {"type": "integer", "description": "Model id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.Envelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.Envelope"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/api.Envelope"}}
                }
            }
        },
        "/model/{name}/graph": {
            "get": {
                "produces": ["application/json"],
                "tags": ["model"],
                "summary": "Get a model graph",
                "parameters": [
                    {"type": "string", "description": "Model name", "name": "name", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.Envelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.Envelope"}}
                }
            }
        }
    },
    "definitions": {
        "api.Envelope": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "data": {},
                "pagination": {
                    "type": "object",
                    "properties": {
                        "total": {"type": "integer"},
                        "offset": {"type": "integer"},
                        "limit": {"type": "integer"}
                    }
                }
            }
        },
        "api.RunRequest": {
            "type": "object",
            "properties": {
                "model_name": {"type": "string"},
                "async": {"type": "boolean"}
            }
        },
        "api.SaveRequest": {
            "type": "object",
            "properties": {
                "model_name": {"type": "string"},
                "model": {"$ref": "#/definitions/model.ModelGraph"}
            }
        },
        "api.TrainingConfigRequest": {
            "type": "object",
            "properties": {
                "model_name": {"type": "string"},
                "file_id": {"type": "string"},
                "problem_type_id": {"type": "integer", "enum": [1, 2, 3]},
                "target_field": {"type": "string"},
                "training_split": {"type": "number"},
                "optimizer": {"type": "string"},
                "metric": {"type": "string"},
                "epochs": {"type": "integer"},
                "batch_size": {"type": "integer"}
            }
        },
        "api.ValidateRequest": {
            "type": "object",
            "properties": {
                "model": {"$ref": "#/definitions/model.ModelGraph"},
                "code": {
                    "type": "object",
                    "properties": {
                        "dl_model": {
                            "type": "object",
                            "properties": {
                                "model_name": {"type": "string"},
                                "optimizer": {"type": "string"},
                                "metric": {"type": "string"},
                                "epochs": {"type": "integer"}
                            }
                        },
                        "dataset": {
                            "type": "object",
                            "properties": {
                                "file_id": {"type": "string"},
                                "target_field": {"type": "string"},
                                "training_split": {"type": "number"},
                                "batch_size": {"type": "integer"}
                            }
                        },
                        "problem_type_id": {"type": "integer", "enum": [1, 2, 3]}
                    }
                }
            }
        },
        "model.ModelGraph": {
            "type": "object",
            "properties": {
                "nodes": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "id": {"type": "string"},
                            "type": {"type": "string"},
                            "data": {"type": "object"},
                            "position": {
                                "type": "object",
                                "properties": {"x": {"type": "number"}, "y": {"type": "number"}}
                            }
                        }
                    }
                },
                "edges": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "source": {"type": "string"},
                            "target": {"type": "string"}
                        }
                    }
                }
            }
        },
        "store.DataFile": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "file_name": {"type": "string"},
                "file_type": {"type": "string"},
                "image": {
                    "type": "object",
                    "properties": {
                        "image_size": {"type": "integer"},
                        "batch_size": {"type": "integer"},
                        "color_mode": {"type": "string", "enum": ["grayscale", "rgb", "rgba"]},
                        "label_mode": {"type": "string", "enum": ["int", "binary"]}
                    }
                },
                "created_on": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "tensorgrid API",
	Description:      "Compile canvas graphs into models, configure and run training.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
