package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinzenz/gmake2cmake/internal/diag"
	"github.com/vinzenz/gmake2cmake/internal/unknown"
)

func TestParse_SimpleAssignmentsAndRule(t *testing.T) {
	content := "CC := gcc\nCFLAGS = -Wall\n\napp: main.o util.o\n\tgcc -o app main.o util.o\n"
	tree := Parse("Makefile", content, nil, nil)
	require.Len(t, tree.Nodes, 3)

	va, ok := tree.Nodes[0].(*VariableAssign)
	require.True(t, ok)
	assert.Equal(t, "CC", va.Name)
	assert.Equal(t, "gcc", va.RawValue)
	assert.Equal(t, KindSimple, va.Kind)

	va2 := tree.Nodes[1].(*VariableAssign)
	assert.Equal(t, KindRecursive, va2.Kind)

	rule := tree.Nodes[2].(*Rule)
	assert.Equal(t, []string{"app"}, rule.Targets)
	assert.Equal(t, []string{"main.o", "util.o"}, rule.Prerequisites)
	assert.Equal(t, []string{"gcc -o app main.o util.o"}, rule.Recipe)
}

func TestParse_PatternRule(t *testing.T) {
	content := "%.o: %.c\n\t$(CC) -c $< -o $@\n"
	tree := Parse("Makefile", content, nil, nil)
	require.Len(t, tree.Nodes, 1)
	pr := tree.Nodes[0].(*PatternRule)
	assert.Equal(t, "%.o", pr.TargetPattern)
	assert.Equal(t, []string{"%.c"}, pr.PrereqPatterns)
	assert.Equal(t, []string{"$(CC) -c $< -o $@"}, pr.Recipe)
}

func TestParse_LineContinuation(t *testing.T) {
	content := "SRCS := a.c \\\n        b.c \\\n        c.c\n"
	tree := Parse("Makefile", content, nil, nil)
	require.Len(t, tree.Nodes, 1)
	va := tree.Nodes[0].(*VariableAssign)
	assert.Equal(t, "a.c b.c c.c", va.RawValue)
}

func TestParse_CommentStrippedButDollarParenPreserved(t *testing.T) {
	content := "FLAGS := -DX # strip me\nPATTERN := $(subst #,_,x#y)\n"
	tree := Parse("Makefile", content, nil, nil)
	require.Len(t, tree.Nodes, 2)
	assert.Equal(t, "-DX", tree.Nodes[0].(*VariableAssign).RawValue)
	assert.Equal(t, "$(subst #,_,x#y)", tree.Nodes[1].(*VariableAssign).RawValue)
}

func TestParse_EscapedHashIsLiteral(t *testing.T) {
	content := "NAME := widget\\#1\n"
	tree := Parse("Makefile", content, nil, nil)
	require.Len(t, tree.Nodes, 1)
	assert.Equal(t, `widget\#1`, tree.Nodes[0].(*VariableAssign).RawValue)
}

func TestParse_IncludeMandatoryAndOptional(t *testing.T) {
	content := "include config.mk\n-include optional.mk\n"
	tree := Parse("Makefile", content, nil, nil)
	require.Len(t, tree.Nodes, 2)
	inc := tree.Nodes[0].(*IncludeStmt)
	assert.Equal(t, []string{"config.mk"}, inc.Paths)
	assert.False(t, inc.Optional)
	opt := tree.Nodes[1].(*IncludeStmt)
	assert.True(t, opt.Optional)
}

func TestParse_ConditionalBothBranches(t *testing.T) {
	content := "ifeq ($(DEBUG),1)\nCFLAGS := -g\nelse\nCFLAGS := -O2\nendif\n"
	tree := Parse("Makefile", content, nil, nil)
	require.Len(t, tree.Nodes, 1)
	cond := tree.Nodes[0].(*Conditional)
	require.Len(t, cond.TrueBranch, 1)
	require.Len(t, cond.FalseBranch, 1)
	assert.Equal(t, "-g", cond.TrueBranch[0].(*VariableAssign).RawValue)
	assert.Equal(t, "-O2", cond.FalseBranch[0].(*VariableAssign).RawValue)
}

func TestParse_NestedConditional(t *testing.T) {
	content := "ifdef FOO\nifeq ($(BAR),1)\nX := 1\nendif\nendif\n"
	tree := Parse("Makefile", content, nil, nil)
	require.Len(t, tree.Nodes, 1)
	outer := tree.Nodes[0].(*Conditional)
	require.Len(t, outer.TrueBranch, 1)
	inner := outer.TrueBranch[0].(*Conditional)
	require.Len(t, inner.TrueBranch, 1)
	assert.Equal(t, "1", inner.TrueBranch[0].(*VariableAssign).RawValue)
}

func TestParse_UnmatchedEndifReportsConditionalError(t *testing.T) {
	content := "X := 1\nendif\n"
	sink := diag.NewSink()
	Parse("Makefile", content, sink, nil)
	require.Len(t, sink.All(), 1)
	assert.Equal(t, diag.CodeParserConditional, sink.All()[0].Code)
	assert.Equal(t, diag.ERROR, sink.All()[0].Severity)
}

func TestParse_MissingEndifReportsConditionalError(t *testing.T) {
	content := "ifdef FOO\nX := 1\n"
	sink := diag.NewSink()
	Parse("Makefile", content, sink, nil)
	require.Len(t, sink.All(), 1)
	assert.Equal(t, diag.CodeParserConditional, sink.All()[0].Code)
}

func TestParse_UnrecognizedLineRecordsUnknownConstruct(t *testing.T) {
	content := "define FOO\nbody\nendef\n"
	sink := diag.NewSink()
	reg := unknown.NewRegistry(sink)
	Parse("Makefile", content, sink, reg)
	require.Equal(t, 3, reg.Len())
	for _, c := range reg.All() {
		assert.Equal(t, unknown.CategoryMakeSyntax, c.Category)
		assert.Equal(t, unknown.PhaseParse, c.Impact.Phase)
	}
}

func TestParse_RecipeBodyToleratesBlankLines(t *testing.T) {
	content := "app: main.o\n\tgcc -c main.c\n\n\tgcc -o app main.o\n"
	tree := Parse("Makefile", content, nil, nil)
	require.Len(t, tree.Nodes, 1)
	rule := tree.Nodes[0].(*Rule)
	assert.Equal(t, []string{"gcc -c main.c", "gcc -o app main.o"}, rule.Recipe)
}

func TestFindTopLevelColon(t *testing.T) {
	assert.Equal(t, 3, findTopLevelColon("app: main.o"))
	assert.Equal(t, -1, findTopLevelColon("$(foo:.c=.o)"))
	assert.Equal(t, 12, findTopLevelColon("$(foo:.c=.o): bar"))
}
