package resolve

// Builtins lists common PHP runtime classes, interfaces and functions.
// They are never declared in analyzed sources, so without this list every
// use would count as unresolved.
var Builtins = []string{
	// classes and interfaces
	"stdClass", "Exception", "ErrorException", "Error", "TypeError", "ValueError",
	"ArgumentCountError", "ArithmeticError", "DivisionByZeroError", "Throwable",
	"RuntimeException", "LogicException", "InvalidArgumentException",
	"DomainException", "LengthException", "OutOfRangeException",
	"OutOfBoundsException", "RangeException", "OverflowException",
	"UnderflowException", "UnexpectedValueException", "BadFunctionCallException",
	"BadMethodCallException", "JsonException",
	"Closure", "Generator", "Traversable", "Iterator", "IteratorAggregate",
	"ArrayAccess", "Countable", "Stringable", "JsonSerializable", "Serializable",
	"ArrayObject", "ArrayIterator", "SplObjectStorage", "SplQueue", "SplStack",
	"SplFixedArray", "SplPriorityQueue", "WeakMap", "WeakReference",
	"DateTime", "DateTimeImmutable", "DateTimeInterface", "DateTimeZone",
	"DateInterval", "DatePeriod", "PDO", "PDOStatement", "PDOException",
	"ReflectionClass", "ReflectionMethod", "ReflectionProperty", "ReflectionFunction",

	// functions
	"strlen", "strtolower", "strtoupper", "substr", "strpos", "str_replace",
	"str_contains", "str_starts_with", "str_ends_with", "sprintf", "printf",
	"implode", "explode", "trim", "ltrim", "rtrim", "ucfirst", "lcfirst",
	"count", "array_map", "array_filter", "array_reduce", "array_keys",
	"array_values", "array_merge", "array_key_exists", "array_search",
	"array_slice", "array_splice", "array_unique", "array_reverse", "in_array",
	"array_push", "array_pop", "array_shift", "array_unshift", "array_combine",
	"array_flip", "array_fill", "array_column", "array_walk", "sort", "usort",
	"ksort", "uasort", "range", "compact", "extract", "min", "max", "abs",
	"floor", "ceil", "round", "intval", "floatval", "strval", "boolval",
	"is_array", "is_string", "is_int", "is_bool", "is_null", "is_numeric",
	"is_object", "is_callable", "isset", "unset", "empty", "gettype",
	"get_class", "get_parent_class", "method_exists", "property_exists",
	"class_exists", "function_exists", "call_user_func", "call_user_func_array",
	"func_get_args", "json_encode", "json_decode", "serialize", "unserialize",
	"var_dump", "var_export", "print_r", "error_log", "trigger_error",
	"file_get_contents", "file_put_contents", "file_exists", "fopen", "fclose",
	"fwrite", "fread", "is_file", "is_dir", "mkdir", "unlink", "dirname",
	"basename", "realpath", "time", "microtime", "date", "strtotime", "sleep",
	"usleep", "preg_match", "preg_match_all", "preg_replace", "preg_split",
	"md5", "sha1", "hash", "random_int", "rand", "mt_rand", "uniqid",
	"spl_object_id", "spl_object_hash", "spl_autoload_register", "define",
	"defined", "constant", "iterator_to_array", "htmlspecialchars", "urlencode",
	"http_build_query", "ob_start", "ob_get_clean", "array_key_first",
	"array_key_last", "number_format", "str_repeat", "str_pad", "mb_strlen",
	"mb_substr", "mb_strtolower", "mb_strtoupper",
}
