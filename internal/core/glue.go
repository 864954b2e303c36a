package core

// ConsoleFunc is the name of the Go-backed function the console object
// forwards to. ConsoleJS captures it in a closure and deletes the global.
const ConsoleFunc = "__jsh_console"

// CoerceJS maps a script's completion value to the response body:
// undefined and null become the empty string, everything else goes through
// String().
const CoerceJS = `(function(r) {
	return r === undefined || r === null ? "" : String(r);
})`

// ConsoleJS installs globalThis.console backed by ConsoleFunc.
const ConsoleJS = `
(function() {
	var emit = globalThis.` + ConsoleFunc + `;
	delete globalThis.` + ConsoleFunc + `;
	var format = function(arg) {
		if (typeof arg === 'string') return arg;
		if (typeof arg === 'object' && arg !== null) {
			if (arg instanceof Error) return String(arg);
			try { return JSON.stringify(arg); } catch (e) { return '[object Object]'; }
		}
		return String(arg);
	};
	var levels = ['log', 'info', 'warn', 'error', 'debug'];
	var con = {};
	for (var i = 0; i < levels.length; i++) {
		(function(lvl) {
			con[lvl] = function() {
				var parts = [];
				for (var j = 0; j < arguments.length; j++) {
					parts.push(format(arguments[j]));
				}
				emit(lvl, parts.join(' '));
			};
		})(levels[i]);
	}
	globalThis.console = con;
})();
`
