package endpoint

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sourcerack/sourcerack/internal/extract"
	"github.com/sourcerack/sourcerack/internal/parser"
)

// runExtractors parses inline source, extracts its imports, and runs every
// matching framework extractor, the way the indexer does.
func runExtractors(t *testing.T, language, path, src string) []Endpoint {
	t.Helper()
	parsers := parser.NewRegistry()
	tree, err := parsers.Parse(language, []byte(src))
	require.NoError(t, err)
	defer tree.Close()

	var imports []extract.Import
	if symExtractor := extract.NewRegistry().ForLanguage(language); symExtractor != nil {
		recs, err := symExtractor.Extract(tree, path, []byte(src))
		require.NoError(t, err)
		imports = recs.Imports
	}

	var out []Endpoint
	for _, e := range NewRegistry().Matching(language, path, imports) {
		eps, err := e.Extract(tree, path, []byte(src), imports)
		require.NoError(t, err)
		out = append(out, eps...)
	}
	return out
}

func findEndpoint(endpoints []Endpoint, method, path string) *Endpoint {
	for i := range endpoints {
		if endpoints[i].Method == method && endpoints[i].Path == path {
			return &endpoints[i]
		}
	}
	return nil
}

func TestFlaskRouteWithMixedMethods(t *testing.T) {
	src := `from flask import Flask

app = Flask(__name__)

@app.route('/users/<int:uid>', methods=['GET', 'POST'])
def users(uid):
    "List or create."
    return []
`
	endpoints := runExtractors(t, "python", "app.py", src)
	require.Len(t, endpoints, 1)

	ep := endpoints[0]
	require.Equal(t, "ALL", ep.Method) // heterogeneous methods list
	require.Equal(t, "/users/<int:uid>", ep.Path)
	require.Equal(t, "flask", ep.Framework)
	require.Equal(t, "users", ep.HandlerName)
	require.Equal(t, "List or create.", ep.Summary)
	require.Len(t, ep.Params, 1)
	require.Equal(t, "uid", ep.Params[0].Name)
	require.Equal(t, LocationPath, ep.Params[0].Location)
	require.True(t, ep.Params[0].Required)
}

func TestFlaskShorthandAndSingleMethod(t *testing.T) {
	src := `from flask import Flask

app = Flask(__name__)

@app.get('/health')
def health():
    return 'ok'

@app.route('/items', methods=['POST'])
def create_item():
    return ''
`
	endpoints := runExtractors(t, "python", "app.py", src)
	require.NotNil(t, findEndpoint(endpoints, "GET", "/health"))
	// A single-element methods list keeps its method.
	require.NotNil(t, findEndpoint(endpoints, "POST", "/items"))
}

func TestRailsNamespacedResources(t *testing.T) {
	src := `Rails.application.routes.draw do
  namespace :api do
    resources :posts, only: [:index, :show]
  end
end
`
	endpoints := runExtractors(t, "ruby", "config/routes.rb", src)
	require.Len(t, endpoints, 2)

	index := findEndpoint(endpoints, "GET", "/api/posts")
	require.NotNil(t, index)
	require.Equal(t, "posts#index", index.HandlerName)
	require.Equal(t, HandlerControllerAction, index.HandlerType)

	show := findEndpoint(endpoints, "GET", "/api/posts/:id")
	require.NotNil(t, show)
	require.Equal(t, "posts#show", show.HandlerName)
	require.Equal(t, []string{"id"}, PathParamNames(show.Path))
}

func TestRailsResourcesExcept(t *testing.T) {
	src := `Rails.application.routes.draw do
  resources :users, except: [:destroy]
end
`
	endpoints := runExtractors(t, "ruby", "config/routes.rb", src)
	require.Len(t, endpoints, 6)
	require.Nil(t, findEndpoint(endpoints, "DELETE", "/users/:id"))
	require.NotNil(t, findEndpoint(endpoints, "GET", "/users"))
	require.NotNil(t, findEndpoint(endpoints, "POST", "/users"))
}

func TestRailsExplicitRoute(t *testing.T) {
	src := `Rails.application.routes.draw do
  get 'status', to: 'system#status'
end
`
	endpoints := runExtractors(t, "ruby", "config/routes.rb", src)
	require.Len(t, endpoints, 1)
	require.Equal(t, "GET", endpoints[0].Method)
	require.Equal(t, "/status", endpoints[0].Path)
	require.Equal(t, "system#status", endpoints[0].HandlerName)
}

func TestExpressRoutes(t *testing.T) {
	src := `const express = require('express');
const app = express();

app.get('/users/:id', authenticate, getUser);
app.post('/users', (req, res) => { res.send('ok'); });
`
	endpoints := runExtractors(t, "javascript", "server.js", src)

	get := findEndpoint(endpoints, "GET", "/users/:id")
	require.NotNil(t, get)
	require.Equal(t, "express", get.Framework)
	require.Equal(t, "getUser", get.HandlerName)
	require.Equal(t, HandlerReference, get.HandlerType)
	require.Equal(t, []string{"authenticate"}, get.Middleware)
	require.Equal(t, []string{"id"}, PathParamNames(get.Path))

	post := findEndpoint(endpoints, "POST", "/users")
	require.NotNil(t, post)
	require.Equal(t, HandlerInline, post.HandlerType)
}

func TestFastifyRouteObject(t *testing.T) {
	src := `import fastify from 'fastify';
const server = fastify();

server.route({ method: 'PUT', url: '/items/:itemId', handler: updateItem });
`
	endpoints := runExtractors(t, "javascript", "server.js", src)
	require.Len(t, endpoints, 1)

	ep := endpoints[0]
	require.Equal(t, "PUT", ep.Method)
	require.Equal(t, "/items/:itemId", ep.Path)
	require.Equal(t, "fastify", ep.Framework)
	require.Equal(t, "updateItem", ep.HandlerName)
}

func TestFastAPIDecorator(t *testing.T) {
	src := `from fastapi import FastAPI, Query, Depends

app = FastAPI()

@app.get("/items/{item_id}", response_model=Item, status_code=200, tags=["items"], dependencies=[Depends(auth)])
def read_item(item_id: int, q: str = Query(None), strict: bool = Query(...)):
    """Fetch one item."""
    return {}
`
	endpoints := runExtractors(t, "python", "main.py", src)
	require.Len(t, endpoints, 1)

	ep := endpoints[0]
	require.Equal(t, "GET", ep.Method)
	require.Equal(t, "/items/{item_id}", ep.Path)
	require.Equal(t, "fastapi", ep.Framework)
	require.Equal(t, "read_item", ep.HandlerName)
	require.Equal(t, "Item", ep.ResponseModel)
	require.Equal(t, 200, ep.ResponseStatus)
	require.Equal(t, []string{"items"}, ep.Tags)
	require.Equal(t, []string{"auth"}, ep.Dependencies)
	require.Equal(t, "Fetch one item.", ep.Summary)

	byName := make(map[string]Param)
	for _, p := range ep.Params {
		byName[p.Name] = p
	}
	require.Equal(t, LocationPath, byName["item_id"].Location)
	require.Equal(t, "int", byName["item_id"].TypeAnnotation)
	require.Equal(t, LocationQuery, byName["q"].Location)
	require.False(t, byName["q"].Required)
	require.Equal(t, LocationQuery, byName["strict"].Location)
	require.True(t, byName["strict"].Required) // Ellipsis default means required
}

func TestNestController(t *testing.T) {
	src := `import { Controller, Get, Post } from '@nestjs/common';

@Controller('users')
export class UsersController {
  @Get(':id')
  findOne() {}

  @Post()
  create() {}
}
`
	endpoints := runExtractors(t, "typescript", "users.controller.ts", src)

	get := findEndpoint(endpoints, "GET", "/users/:id")
	require.NotNil(t, get)
	require.Equal(t, "nestjs", get.Framework)
	require.Equal(t, "findOne", get.HandlerName)
	require.Equal(t, HandlerClassMethod, get.HandlerType)

	post := findEndpoint(endpoints, "POST", "/users")
	require.NotNil(t, post)
	require.Equal(t, "create", post.HandlerName)
}

func TestMCPToolRegistration(t *testing.T) {
	src := `from mcp.server.fastmcp import FastMCP

mcp = FastMCP("demo")

@mcp.tool()
def search_code(query: str):
    """Search the index."""
    return []
`
	endpoints := runExtractors(t, "python", "server.py", src)
	require.Len(t, endpoints, 1)
	require.Equal(t, "mcp", endpoints[0].Framework)
	require.Equal(t, "POST", endpoints[0].Method)
	require.Equal(t, "/tools/search_code", endpoints[0].Path)
	require.Equal(t, "search_code", endpoints[0].HandlerName)
	require.Equal(t, "Search the index.", endpoints[0].Summary)
}

func TestDjangoViewSet(t *testing.T) {
	src := `from rest_framework import viewsets

class ArticleViewSet(viewsets.ModelViewSet):
    def list(self, request):
        return None

    def retrieve(self, request, pk=None):
        return None
`
	endpoints := runExtractors(t, "python", "views.py", src)

	list := findEndpoint(endpoints, "GET", "/article")
	require.NotNil(t, list)
	require.Equal(t, "django", list.Framework)
	require.Equal(t, "ArticleViewSet.list", list.HandlerName)

	retrieve := findEndpoint(endpoints, "GET", "/article/{id}")
	require.NotNil(t, retrieve)
	require.Equal(t, []string{"id"}, PathParamNames(retrieve.Path))
}

func TestSinatraRoutes(t *testing.T) {
	src := `require 'sinatra'

get '/hello/:name' do
  "Hello"
end

post '/submit' do
  "ok"
end
`
	endpoints := runExtractors(t, "ruby", "app.rb", src)
	require.NotNil(t, findEndpoint(endpoints, "GET", "/hello/:name"))
	require.NotNil(t, findEndpoint(endpoints, "POST", "/submit"))
}
