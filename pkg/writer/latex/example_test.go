package latex_test

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"

	"github.com/matzehuels/docdiag/pkg/writer/latex"
)

func ExampleNewRenderer() {
	md := goldmark.New(
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRenderer(renderer.NewRenderer(
			renderer.WithNodeRenderers(util.Prioritized(latex.NewRenderer(), 1000)),
		)),
	)
	src := "# Hello World\n\nSome *text* with $5 & `x_y`.\n\n- one\n- two\n"

	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		panic(err)
	}
	fmt.Print(buf.String())
	// Output:
	// \section{Hello World}\label{hello-world}
	//
	// Some \emph{text} with \$5 \& \texttt{x\_y}.
	//
	// \begin{itemize}
	// \item one
	// \item two
	// \end{itemize}
}

func ExampleEscape() {
	fmt.Println(latex.Escape(`50% of {a_b} costs $3 \ ~x^2 #1 & more`))
	// Output:
	// 50\% of \{a\_b\} costs \$3 \textbackslash{} \textasciitilde{}x\textasciicircum{}2 \#1 \& more
}
