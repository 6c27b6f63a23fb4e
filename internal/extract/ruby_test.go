package extract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRubyClassAndMethods(t *testing.T) {
	src := `require 'json'
require_relative 'helpers'

module Billing
  class Invoice
    def initialize(total)
      @total = total
    end

    def self.build(total)
      Invoice.new(total)
    end

    def _internal
    end

    def total_cents
      @total * 100
    end
  end
end
`
	recs := parseAndExtract(t, "ruby", "billing.rb", src)

	mod := findSymbol(recs, "Billing")
	require.NotNil(t, mod)
	require.Equal(t, KindModule, mod.Kind)

	class := findSymbol(recs, "Invoice")
	require.NotNil(t, class)
	require.Equal(t, KindClass, class.Kind)
	require.Equal(t, "Billing.Invoice", class.QualifiedName)

	ctor := findSymbol(recs, "initialize")
	require.NotNil(t, ctor)
	require.Equal(t, KindConstructor, ctor.Kind)

	build := findSymbol(recs, "build")
	require.NotNil(t, build)
	require.True(t, build.IsStatic)
	require.Equal(t, "Billing.Invoice.build", build.QualifiedName)

	private := findSymbol(recs, "_internal")
	require.NotNil(t, private)
	require.Equal(t, "private", private.Visibility)
	require.False(t, private.IsExported)

	public := findSymbol(recs, "total_cents")
	require.NotNil(t, public)
	require.Equal(t, "public", public.Visibility)
	require.True(t, public.IsExported)
}

func TestRubyImports(t *testing.T) {
	src := `require 'json'
require_relative 'helpers'
`
	recs := parseAndExtract(t, "ruby", "app.rb", src)
	require.Len(t, recs.Imports, 2)
	require.Equal(t, "require", recs.Imports[0].ImportType)
	require.Equal(t, "json", recs.Imports[0].ModuleSpecifier)
	require.Equal(t, "require_relative", recs.Imports[1].ImportType)
	require.Equal(t, "helpers", recs.Imports[1].ModuleSpecifier)
}

func TestRubyUsageKinds(t *testing.T) {
	src := `class Child < Base
end

invoice = Invoice.new(5)
result = invoice.total_cents
`
	recs := parseAndExtract(t, "ruby", "usages.rb", src)

	require.NotNil(t, findUsage(recs, "Base", UsageExtend))
	require.NotNil(t, findUsage(recs, "Invoice", UsageInstantiate))
	require.NotNil(t, findUsage(recs, "total_cents", UsageCall))
	require.NotNil(t, findUsage(recs, "invoice", UsageWrite))
}
