package renderer

// extractScript runs inside the page and returns the full measurement input
// for one unit: every classed element's descriptor plus document scroll
// dimensions and scroll offset. Bounding boxes are converted to
// page-relative coordinates so the engine can clip against any scroll
// position. The returned object unmarshals directly into
// analysis.DOMSnapshot.
const extractScript = `(() => {
	const vw = window.innerWidth;
	const vh = window.innerHeight;
	const elements = [];
	for (const el of document.querySelectorAll('*')) {
		const tokens = el.classList ? Array.from(el.classList) : [];
		if (tokens.length === 0) {
			continue;
		}
		const rect = el.getBoundingClientRect();
		const style = window.getComputedStyle(el);
		elements.push({
			tagName: el.tagName.toLowerCase(),
			id: el.id || "",
			classTokens: tokens,
			boundingBox: {
				x: rect.left + window.scrollX,
				y: rect.top + window.scrollY,
				width: rect.width,
				height: rect.height,
			},
			isVisible: style.display !== 'none'
				&& style.visibility !== 'hidden'
				&& rect.width > 0
				&& rect.height > 0,
			inViewport: rect.bottom > 0 && rect.right > 0 && rect.top < vh && rect.left < vw,
		});
	}
	const body = document.body;
	const doc = document.documentElement;
	return {
		elements: elements,
		bodyScrollWidth: body ? body.scrollWidth : 0,
		bodyScrollHeight: body ? body.scrollHeight : 0,
		documentScrollWidth: doc.scrollWidth,
		documentScrollHeight: doc.scrollHeight,
		scrollX: window.scrollX,
		scrollY: window.scrollY,
		viewportWidth: vw,
		viewportHeight: vh,
	};
})()`
