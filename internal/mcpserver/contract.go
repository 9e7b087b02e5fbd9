package mcpserver

// MarkupContract describes the stored note markup that LLM consumers should
// produce when creating or updating notes.
const MarkupContract = `# Quire Note Markup Contract

Every note body stored in Quire is an HTML fragment. The server sanitises
what it receives, so anything outside this contract is silently dropped.

## Structure

` + "```" + `html
<h1>Human-readable heading</h1>
<p>Body text with <b>bold</b> and <i>italic</i> runs.</p>
<ul><li>list item</li></ul>
<p>Inline math: $E=mc^2$. Display math: $$\int_0^1 x\,dx$$</p>
` + "```" + `

## Rules

1. **Fragments only.** No <html>, <head> or <body>; the note title lives
   in the note's metadata, not in the body.
2. **Allowed blocks:** p, h1, h2, ul, ol, li, pre, blockquote, div, br, hr.
3. **Allowed inline:** b, i, strong, em, u, s, code, a, span, sub, sup, img.
4. **Math** is plain text between ` + "`" + `$...$` + "`" + ` (inline) or ` + "`" + `$$...$$` + "`" + ` (display)
   delimiters. It is rendered to MathML for preview and export only; never
   store rendered MathML.
5. **Dropped on save:** script, style, iframe, object, embed, event handler
   attributes (on*), and javascript: URLs.
6. **Encoding** is UTF-8.

## Images

- Images are embedded as data URIs: ` + "`" + `<img src="data:image/png;base64,...">` + "`" + `.
- Use the ` + "`" + `insert_image` + "`" + ` tool to append an image from a URL or data URI.
- Supported formats: png, jpeg, gif, webp, svg. Maximum 10 MB.

## Example

` + "```" + `html
<h1>Kinematics</h1>
<p>The velocity is $v = \frac{dx}{dt}$.</p>
<ol><li>Measure <b>distance</b></li><li>Measure <i>time</i></li></ol>
` + "```" + `
`
